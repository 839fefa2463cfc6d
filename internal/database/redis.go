package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClients struct {
	Queue    *redis.Client
	Sessions *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Notification queue client
	queueClient := redis.NewClient(opt)
	if err := queueClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	// Refresh-token session client (separate connection)
	sessionOpt := *opt
	sessionClient := redis.NewClient(&sessionOpt)
	if err := sessionClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (sessions): %w", err)
	}

	return &RedisClients{
		Queue:    queueClient,
		Sessions: sessionClient,
	}, nil
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.Sessions.Close()
}
