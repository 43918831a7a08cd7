package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/langchou/runtrack/internal/config"
)

// ConnectRedis 连接 Redis，未配置地址时返回 nil
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
