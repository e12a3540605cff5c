package localcache

import (
	"context"
	"strings"

	"go-chat-vault/internal/model"
)

// Cache is implemented by every backend in this package.
type Cache interface {
	Get(ctx context.Context, ownerID string) ([]model.ChatThread, error)
	Set(ctx context.Context, ownerID string, threads []model.ChatThread) error
	Delete(ctx context.Context, ownerID string) error
}

// Open picks a backend from a location string: "memory", a redis:// or
// rediss:// URL, or a directory path for the JSON file cache. The returned
// func releases the backend.
func Open(ctx context.Context, location string) (Cache, func() error, error) {
	location = strings.TrimSpace(location)

	switch {
	case location == "" || location == "memory":
		return NewMemory(), func() error { return nil }, nil
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		client, err := DialRedis(ctx, location)
		if err != nil {
			return nil, nil, err
		}
		return NewRedis(client, 0), client.Close, nil
	default:
		f, err := NewFile(location)
		if err != nil {
			return nil, nil, err
		}
		return f, func() error { return nil }, nil
	}
}
