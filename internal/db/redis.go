package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"assetprocessor/internal/config"
)

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, rc config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Address,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
