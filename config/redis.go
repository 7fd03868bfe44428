package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

var Redis *redis.Client

// ConnectRedis opens the shared client when REDIS_ENABLED is set.
// Redis is optional: rate limits fall back to memory and dispatch runs unlocked.
func ConnectRedis(ctx context.Context) error {
	if !AppConfig.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     AppConfig.Redis.Address,
		Password: AppConfig.Redis.Password,
		DB:       AppConfig.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	Redis = client
	logrus.WithField("addr", AppConfig.Redis.Address).Info("Connected to redis")
	return nil
}
