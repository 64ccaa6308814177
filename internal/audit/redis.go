package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConfig configures the audit stream publisher.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	RedisURL  string `yaml:"redis_url" mapstructure:"redis_url"`
	Stream    string `yaml:"stream" mapstructure:"stream"`
	MaxLen    int64  `yaml:"max_len" mapstructure:"max_len"`
	PoolSize  int    `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdle   int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// RedisSink publishes audit events onto a capped Redis Stream so the
// compliance platform can consume them without reading gateway logs.
type RedisSink struct {
	client *redis.Client
	cfg    RedisConfig
	logger *zap.Logger
}

// NewRedisSink connects and verifies the connection.
func NewRedisSink(cfg RedisConfig, logger *zap.Logger) (*RedisSink, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdle

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("audit stream publisher initialized",
		zap.String("stream", cfg.Stream),
		zap.Int64("max_len", cfg.MaxLen),
	)
	return &RedisSink{client: client, cfg: cfg, logger: logger}, nil
}

// Emit implements Sink. Publish failures are logged and dropped; audit
// transport problems must not fail the gateway call.
func (s *RedisSink) Emit(ctx context.Context, e Event) {
	values := map[string]interface{}{
		"event":     e.Event,
		"tenant_id": e.TenantID,
		"time":      e.Time.Format(time.RFC3339Nano),
	}
	if e.ActorID != "" {
		values["actor_id"] = e.ActorID
	}
	for k, v := range e.Meta {
		values[k] = fmt.Sprintf("%v", v)
	}

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		MaxLen: s.cfg.MaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		s.logger.Warn("failed to publish audit event",
			zap.String("event", e.Event),
			zap.Error(err),
		)
	}
}

// Close releases the Redis connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
