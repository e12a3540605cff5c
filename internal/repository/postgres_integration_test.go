//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-chat-vault/internal/database"
)

func openTestPostgres(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, database.PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func TestPostgresStoresContract(t *testing.T) {
	db := openTestPostgres(t)
	users := NewUserRepository(db.Pool, 5*time.Second)
	chats := NewChatRepository(db.Pool, 5*time.Second)

	t.Run("users", func(t *testing.T) { runUserStoreContract(t, users) })
	t.Run("chats", func(t *testing.T) { runChatStoreContract(t, users, chats) })
}
