package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/teamsync/app"
	"github.com/tendant/teamsync/internal/config"
	"github.com/tendant/teamsync/internal/notification"
	"github.com/tendant/teamsync/pkg/activity"
	"github.com/tendant/teamsync/pkg/invitation"
	"github.com/tendant/teamsync/pkg/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	var db *sql.DB
	if cfg.StoreDriver == config.StoreDriverPostgres {
		db, err = repository.NewDB(repository.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("connected to database")
	} else {
		logger.Warn("using in-memory store, data is lost on restart")
	}

	// Connect to MongoDB if configured
	var mongoDB *mongo.Database
	if cfg.HasMongo() {
		mongoDB, err = activity.ConnectMongoDB(ctx, activity.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			logger.Error("failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer mongoDB.Client().Disconnect(context.Background())
		logger.Info("activity log stored in MongoDB", "database", cfg.MongoDatabase)
	}

	// Connect to Redis if configured
	var redisClient *redis.Client
	if cfg.HasRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("realtime relay enabled", "channel", cfg.RedisChannel)
	}

	// Initialize email service if configured
	var mailer invitation.Mailer
	if cfg.HasSMTP() {
		mailer = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email service enabled")
	}

	appCfg := app.Config{
		DB:                db,
		Mongo:             mongoDB,
		RedisChannel:      cfg.RedisChannel,
		InstanceID:        cfg.InstanceID,
		JWTSecret:         cfg.JWTSecret,
		JWTIssuer:         cfg.JWTIssuer,
		AppBaseURL:        cfg.AppBaseURL,
		InvitationTTL:     cfg.InvitationTTL,
		DefaultMaxMembers: cfg.DefaultMaxMembers,
		Mailer:            mailer,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimit:         cfg.RateLimit,
		SecurityHeaders:   cfg.SecurityHeaders,
		Validation:        cfg.Validation,
		Logger:            logger,
	}
	if redisClient != nil {
		appCfg.Redis = redisClient
	}

	a, err := app.New(ctx, appCfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := a.Run(ctx); err != nil {
			logger.Error("realtime relay stopped", "error", err)
		}
	}()

	// Create HTTP server. WriteTimeout stays zero so websocket sessions are
	// not cut off.
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr, "instance_id", cfg.InstanceID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	a.Wait()

	logger.Info("server stopped")
}
