package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-chat-vault/internal/model"
)

const redisKeyPrefix = "chatvault:cache:"

// Redis stores each owner's thread list as one JSON value. ttl of zero keeps
// entries until Delete.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// DialRedis parses url, connects and pings before returning.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context, ownerID string) ([]model.ChatThread, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+ownerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.ChatThread{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache from redis: %w", err)
	}

	var threads []model.ChatThread
	if err := json.Unmarshal(raw, &threads); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return cloneThreads(threads), nil
}

func (r *Redis) Set(ctx context.Context, ownerID string, threads []model.ChatThread) error {
	raw, err := json.Marshal(cloneThreads(threads))
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+ownerID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("write cache to redis: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, ownerID string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+ownerID).Err(); err != nil {
		return fmt.Errorf("delete cache from redis: %w", err)
	}
	return nil
}
