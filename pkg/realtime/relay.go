package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the Redis pub/sub channel shared by all instances.
const DefaultRelayChannel = "teamsync:realtime"

// RelayConfig configures a RedisRelay.
type RelayConfig struct {
	Channel string
	// InstanceID tags envelopes published here. It must differ per process;
	// a random id is used when empty.
	InstanceID string
	Logger     *slog.Logger
}

// RedisRelay is a Publisher that reaches subscribers on every instance.
// Events are delivered to the local Hub directly and to other instances over
// Redis pub/sub; each instance ignores the envelopes it published itself.
type RedisRelay struct {
	client     redis.UniversalClient
	local      *Hub
	channel    string
	instanceID string
	logger     *slog.Logger
}

type relayEnvelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// NewRedisRelay creates a relay delivering into local.
func NewRedisRelay(client redis.UniversalClient, local *Hub, cfg RelayConfig) *RedisRelay {
	if cfg.Channel == "" {
		cfg.Channel = DefaultRelayChannel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RedisRelay{
		client:     client,
		local:      local,
		channel:    cfg.Channel,
		instanceID: cfg.InstanceID,
		logger:     cfg.Logger,
	}
}

// Publish implements Publisher.
func (r *RedisRelay) Publish(ctx context.Context, room, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	r.local.Deliver(room, Frame{Event: event, Data: payload})

	msg, err := json.Marshal(relayEnvelope{
		Origin: r.instanceID,
		Room:   room,
		Event:  event,
		Data:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

// Run forwards envelopes from other instances into the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	r.logger.Info("realtime relay subscribed", "channel", r.channel, "instance_id", r.instanceID)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("relay subscription closed")
			}
			r.handleMessage([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) handleMessage(payload []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.logger.Warn("relay envelope dropped", "error", err)
		return
	}
	if env.Origin == r.instanceID || env.Room == "" {
		return
	}
	r.local.Deliver(env.Room, Frame{Event: env.Event, Data: env.Data})
}

// InstanceID returns the id this relay stamps on outgoing envelopes.
func (r *RedisRelay) InstanceID() string {
	return r.instanceID
}

var _ Publisher = (*RedisRelay)(nil)
