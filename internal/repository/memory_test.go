package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-chat-vault/internal/model"
)

func TestMemoryUserRepository_EmailIsCaseInsensitive(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, model.User{ID: "u1", Name: "Ann", Email: "a@x.com"}))
	assert.ErrorIs(t, repo.Create(ctx, model.User{ID: "u2", Email: "A@X.COM"}), model.ErrDuplicateEmail)

	exists, err := repo.ExistsByEmail(ctx, " A@x.com ")
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := repo.FindByEmail(ctx, "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestMemoryUserRepository_ResetTokenLifecycle(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, model.User{ID: "u1", Email: "a@x.com", PasswordHash: "old"}))
	require.NoError(t, repo.SetResetToken(ctx, "u1", "hash-1", now.Add(10*time.Minute)))

	_, err := repo.ConsumeResetToken(ctx, "hash-1", now.Add(11*time.Minute), "late")
	assert.ErrorIs(t, err, model.ErrResetTokenNotFound)
	_, err = repo.ConsumeResetToken(ctx, "other", now, "wrong")
	assert.ErrorIs(t, err, model.ErrResetTokenNotFound)

	consumed, err := repo.ConsumeResetToken(ctx, "hash-1", now.Add(9*time.Minute), "new")
	require.NoError(t, err)
	assert.Equal(t, "u1", consumed.ID)
	assert.Equal(t, "new", consumed.PasswordHash)

	_, err = repo.ConsumeResetToken(ctx, "hash-1", now.Add(9*time.Minute), "again")
	assert.ErrorIs(t, err, model.ErrResetTokenNotFound)

	stored, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.PasswordHash)
	assert.Empty(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiresAt)
}

func TestMemoryUserRepository_UpdatePasswordClearsResetToken(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, model.User{ID: "u1", Email: "a@x.com", PasswordHash: "old"}))
	require.NoError(t, repo.SetResetToken(ctx, "u1", "hash-1", now.Add(10*time.Minute)))
	require.NoError(t, repo.UpdatePassword(ctx, "u1", "changed"))

	_, err := repo.ConsumeResetToken(ctx, "hash-1", now, "new")
	assert.ErrorIs(t, err, model.ErrResetTokenNotFound)
}

func TestMemoryChatRepository_ConcurrentUpsertKeepsOneThread(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Upsert(ctx, model.ChatThread{
				ChatID:    "c1",
				OwnerID:   "u1",
				Title:     fmt.Sprintf("write %d", i),
				UpdatedAt: base.Add(time.Duration(i) * time.Second),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	threads, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, threads, 1)

	others, err := repo.ListByOwner(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestMemoryChatRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	_, err := repo.Upsert(ctx, model.ChatThread{
		ChatID:   "c1",
		OwnerID:  "u1",
		Messages: []model.Message{{Text: "hi", Sender: model.SenderUser}},
		Extra:    map[string]any{"model": "small"},
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	got.Messages[0].Text = "changed"
	got.Extra["model"] = "large"

	again, err := repo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Text)
	assert.Equal(t, "small", again.Extra["model"])
}

func TestMemoryRepositories_SimulatedOutage(t *testing.T) {
	users := NewMemoryUserRepository()
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	users.SetAvailable(false)
	chats.SetAvailable(false)
	assert.False(t, users.Available(ctx))
	assert.False(t, chats.Available(ctx))

	_, err := users.FindByID(ctx, "u1")
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	_, err = chats.Upsert(ctx, model.ChatThread{ChatID: "c1", OwnerID: "u1"})
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	chats.SetAvailable(true)
	assert.True(t, chats.Available(ctx))
}

func TestOfflineStore(t *testing.T) {
	var (
		users UserStore = Offline{}
		chats ChatStore = Offline{}
	)
	ctx := context.Background()

	assert.False(t, users.Available(ctx))
	assert.ErrorIs(t, users.Create(ctx, model.User{}), model.ErrStoreUnavailable)
	_, err := chats.ListByOwner(ctx, "u1")
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestMemoryChatRepository_CreatedAtFollowsFirstSave(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stored, err := repo.Upsert(ctx, model.ChatThread{
		ChatID:    "c1",
		OwnerID:   "u1",
		CreatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: first,
	})
	require.NoError(t, err)
	assert.Equal(t, first, stored.CreatedAt)

	stored, err = repo.Upsert(ctx, model.ChatThread{
		ChatID:    "c1",
		OwnerID:   "u1",
		CreatedAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: first.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, first, stored.CreatedAt)
	assert.Equal(t, first.Add(time.Hour), stored.UpdatedAt)
}
