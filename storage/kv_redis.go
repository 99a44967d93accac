package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed snapshot slot
type RedisConfig struct {
	// Address is the Redis server address (e.g. "localhost:6379")
	Address string

	// Password for authentication (optional)
	Password string

	// Database number to use (default 0)
	Database int

	// Prefix is prepended to all slot keys
	Prefix string

	// TTL for slot keys (0 = no expiration). Match logs are operational
	// state, so the default keeps them indefinitely.
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration
}

// DefaultRedisConfig returns sensible defaults for a local Redis
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address: address,
		Prefix:  "matchlog:",
		Timeout: 5 * time.Second,
	}
}

// RedisKV stores snapshot slots in Redis. Intended for deployments where the
// coaching app backend already runs Redis; a lost connection surfaces as a
// save failure, which the store treats as "could not persist".
type RedisKV struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisKV connects and verifies the server is reachable
func NewRedisKV(ctx context.Context, cfg RedisConfig) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisKV{cfg: cfg, client: client}, nil
}

func (r *RedisKV) key(key string) string { return r.cfg.Prefix + key }

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, r.cfg.TTL).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisKV) Close() error { return r.client.Close() }
