package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"SERVER_ADDR", "SERVER_PORT", "STORE_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD",
		"DB_NAME", "DB_SSLMODE", "APP_BASE_URL", "CLIENT_URL", "INVITATION_TTL", "ALLOWED_ORIGINS",
		"RATE_LIMIT_ENABLED", "MONGODB_URI", "REDIS_URL", "SMTP_HOST", "SMTP_FROM", "DEFAULT_MAX_MEMBERS",
		"INSTANCE_ID",
	}
	for _, v := range envVars {
		if old, ok := os.LookupEnv(v); ok {
			os.Unsetenv(v)
			t.Cleanup(func() { os.Setenv(v, old) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverPostgres)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, want %q", cfg.DBSSLMode, "disable")
	}
	if cfg.InvitationTTL != 7*24*time.Hour {
		t.Errorf("InvitationTTL = %v, want %v", cfg.InvitationTTL, 7*24*time.Hour)
	}
	if cfg.DefaultMaxMembers != 5 {
		t.Errorf("DefaultMaxMembers = %d, want 5", cfg.DefaultMaxMembers)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = false, want true")
	}
	if cfg.HasMongo() || cfg.HasRedis() || cfg.HasSMTP() {
		t.Error("optional integrations should be disabled by default")
	}
}

func TestLoad_InstanceIDUniquePerProcess(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret-key")

	first, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first.InstanceID == "" || first.InstanceID == second.InstanceID {
		t.Errorf("InstanceID = %q and %q, want distinct non-empty ids", first.InstanceID, second.InstanceID)
	}

	t.Setenv("INSTANCE_ID", "node-a")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.InstanceID != "node-a" {
		t.Errorf("InstanceID = %q, want node-a", cfg.InstanceID)
	}
}

func TestLoad_RequiredJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("Load should fail when JWT_SECRET is not set")
	}
}

func TestLoad_InvalidStoreDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "sqlite")

	if _, err := Load(); err == nil {
		t.Error("Load should reject an unknown STORE_DRIVER")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "custom-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("INVITATION_TTL", "48h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 9090)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverMemory)
	}
	if cfg.InvitationTTL != 48*time.Hour {
		t.Errorf("InvitationTTL = %v, want %v", cfg.InvitationTTL, 48*time.Hour)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = true, want false")
	}
	if !cfg.HasRedis() {
		t.Error("HasRedis() = false, want true")
	}
}

func TestLoad_ClientURLAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CLIENT_URL", "https://app.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AppBaseURL != "https://app.example.com" {
		t.Errorf("AppBaseURL = %q, want CLIENT_URL value", cfg.AppBaseURL)
	}
}

func TestHasSMTP(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		from     string
		expected bool
	}{
		{"both set", "smtp.example.com", "noreply@example.com", true},
		{"only host", "smtp.example.com", "", false},
		{"only from", "", "noreply@example.com", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{SMTPHost: tt.host, SMTPFrom: tt.from}
			if cfg.HasSMTP() != tt.expected {
				t.Errorf("HasSMTP() = %v, want %v", cfg.HasSMTP(), tt.expected)
			}
		})
	}
}

func TestGetEnvInt_InvalidValue(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")

	result := getEnvInt("TEST_INT", 42)
	if result != 42 {
		t.Errorf("getEnvInt should return default for invalid value, got %d", result)
	}
}

func TestGetEnvDuration_InvalidValue(t *testing.T) {
	t.Setenv("TEST_DURATION", "invalid")

	result := getEnvDuration("TEST_DURATION", 5*time.Minute)
	if result != 5*time.Minute {
		t.Errorf("getEnvDuration should return default for invalid value, got %v", result)
	}
}
