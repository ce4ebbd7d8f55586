package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"geojournal/config"

	"github.com/go-redis/redis/v8"
)

// RedisClient is shared by the timeline cache and the health check.
var RedisClient *redis.Client

func redisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
}

// ConnectRedis opens the client and pings it. On failure the client is
// closed and RedisClient stays nil.
func ConnectRedis(cfg *config.Config) error {
	client := redis.NewClient(redisOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", client.Options().Addr, err)
	}

	RedisClient = client
	return nil
}

// CloseRedis closes the shared client, if any.
func CloseRedis() error {
	if RedisClient == nil {
		return nil
	}
	err := RedisClient.Close()
	RedisClient = nil
	return err
}

// CheckRedis round-trips a short-lived key to verify read and write access.
func CheckRedis(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	const key = "geojournal:healthcheck"
	want := time.Now().UTC().Format(time.RFC3339Nano)

	if err := RedisClient.Set(ctx, key, want, time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set Redis key: %w", err)
	}

	got, err := RedisClient.GetDel(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read back Redis key: %w", err)
	}
	if got != want {
		return fmt.Errorf("unexpected value from Redis: got %s", got)
	}
	return nil
}
