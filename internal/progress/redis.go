// Package progress broadcasts job progress to live listeners.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/logger"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

// Publisher is the subset of the go-redis client used for fan-out.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes progress events as JSON on one channel per job.
type RedisPublisher struct {
	client Publisher
	prefix string
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(client Publisher, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "pdf2audio:jobs"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel events for jobID are published on.
func (p *RedisPublisher) Channel(jobID string) string {
	return p.prefix + ":" + jobID
}

// Publish implements port.ProgressPublisher.
func (p *RedisPublisher) Publish(ctx context.Context, event port.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(event.JobID.String()), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ping checks the connection when the client supports it.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	pinger, ok := p.client.(interface {
		Ping(ctx context.Context) *redis.StatusCmd
	})
	if !ok {
		return nil
	}
	return pinger.Ping(ctx).Err()
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish implements port.ProgressPublisher.
func (NoopPublisher) Publish(context.Context, port.ProgressEvent) error {
	return nil
}

// Ping always succeeds.
func (NoopPublisher) Ping(context.Context) error {
	return nil
}

// NewFromConfig connects to Redis when an address is configured and returns
// a NoopPublisher otherwise. The returned close func is never nil.
func NewFromConfig(ctx context.Context, cfg *config.RedisConfig) (port.ProgressPublisher, func() error, error) {
	if cfg.Addr == "" {
		log.Info().Msg("progress.NewFromConfig: no redis address, progress events disabled")
		return NoopPublisher{}, func() error { return nil }, nil
	}

	var opts *redis.Options
	if u, err := redis.ParseURL(cfg.Addr); err == nil {
		opts = u
	} else {
		opts = &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Str("redis", logger.RedactURL(cfg.Addr)).Msg("progress.NewFromConfig: publishing progress events")
	return NewRedisPublisher(client, cfg.ChannelPrefix), client.Close, nil
}
