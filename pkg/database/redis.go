package database

import (
	"context"
	"time"

	"cinema-ticketing/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// InitRedis connects to Redis for the reservation rate limiter. A nil
// client is a valid return: callers degrade gracefully by disabling rate
// limiting when Redis is unreachable at startup.
func InitRedis(config utils.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}

	return client
}
