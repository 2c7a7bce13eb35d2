package monitor

import (
	"context"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// DefaultKeep caps the Redis event list length.
const DefaultKeep = 1000

// RedisSink mirrors the event stream into a capped Redis list so a run can
// be followed from another host.
type RedisSink struct {
	client *backend.Client
	key    string
	keep   int64
}

// RedisOption adjusts a RedisSink.
type RedisOption func(*RedisSink)

// WithKey stores events under a different list key.
func WithKey(key string) RedisOption {
	return func(s *RedisSink) { s.key = key }
}

// WithKeep retains the last n events instead of DefaultKeep.
func WithKeep(n int64) RedisOption {
	return func(s *RedisSink) { s.keep = n }
}

// NewRedisSink connects to Redis and returns a sink.
func NewRedisSink(address, password string, db int, opts ...RedisOption) *RedisSink {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisSinkFromClient(client, opts...)
}

// NewRedisSinkFromClient wraps an existing client.
func NewRedisSinkFromClient(client *backend.Client, opts ...RedisOption) *RedisSink {
	s := &RedisSink{
		client: client,
		key:    "oracdr:events",
		keep:   DefaultKeep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSink) Emit(ctx context.Context, ev domain.DisplayEvent) error {
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key, FromEvent(ev).String())
	pipe.LTrim(ctx, s.key, -s.keep, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror event to redis: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
