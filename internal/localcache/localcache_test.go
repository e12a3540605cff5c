package localcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-chat-vault/internal/model"
)

func thread(id string) model.ChatThread {
	return model.ChatThread{
		ChatID:    id,
		OwnerID:   "user-1",
		Title:     "title " + id,
		Messages:  []model.Message{{Text: "hi", Sender: model.SenderUser, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}},
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func backends(t *testing.T) map[string]Cache {
	t.Helper()

	fileCache, err := NewFile(t.TempDir())
	require.NoError(t, err)

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Cache{
		"memory": NewMemory(),
		"file":   fileCache,
		"redis":  NewRedis(client, 0),
	}
}

func TestCacheBackends(t *testing.T) {
	for name, cache := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := cache.Get(ctx, "user-1")
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			require.NoError(t, cache.Set(ctx, "user-1", []model.ChatThread{thread("a"), thread("b")}))
			require.NoError(t, cache.Set(ctx, "user-2", []model.ChatThread{thread("c")}))

			got, err := cache.Get(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "a", got[0].ChatID)
			assert.Equal(t, "hi", got[0].Messages[0].Text)
			assert.True(t, got[0].UpdatedAt.Equal(thread("a").UpdatedAt))
			assert.NotNil(t, got[0].Files)

			require.NoError(t, cache.Delete(ctx, "user-1"))
			got, err = cache.Get(ctx, "user-1")
			require.NoError(t, err)
			assert.Empty(t, got)

			other, err := cache.Get(ctx, "user-2")
			require.NoError(t, err)
			assert.Len(t, other, 1)

			require.NoError(t, cache.Delete(ctx, "nobody"))
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()
	require.NoError(t, cache.Set(ctx, "u", []model.ChatThread{thread("a")}))

	got, err := cache.Get(ctx, "u")
	require.NoError(t, err)
	got[0].Messages[0].Text = "mutated"

	again, err := cache.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "hi", again[0].Messages[0].Text)
}

func TestRedisTTL(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	cache := NewRedis(client, time.Minute)
	require.NoError(t, cache.Set(ctx, "u", []model.ChatThread{thread("a")}))

	server.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileCacheHandlesCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cache.path("u"), []byte("{not json"), 0o600))
	_, err = cache.Get(context.Background(), "u")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cache, closeFn, err := Open(ctx, "memory")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, cache)
	require.NoError(t, closeFn())

	cache, closeFn, err = Open(ctx, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &File{}, cache)
	require.NoError(t, closeFn())

	server := miniredis.RunT(t)
	cache, closeFn, err = Open(ctx, "redis://"+server.Addr())
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, cache)
	require.NoError(t, closeFn())
}
