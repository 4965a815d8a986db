// Package cache constructs the shared Redis client. Two subsystems hang off
// it: the refresh-token registry when the gateway runs with more than one
// replica, and the booking-reference lookup cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/altavia-air/altavia-api/pkg/config"
)

const dialTimeout = 5 * time.Second

// NewRedis connects to the configured Redis instance and fails fast if it
// is unreachable, so a misconfigured deployment dies at startup instead of
// at the first token rotation.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
