package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-chat-vault/internal/model"
)

// Shared behaviour every UserStore and ChatStore backend must satisfy. The
// Postgres and Mongo runs live behind the integration build tag.

func newContractUser(t *testing.T, users UserStore) model.User {
	t.Helper()

	id := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)
	u := model.User{
		ID:           id,
		Name:         "Ann",
		Email:        "Ann+" + id + "@Example.com",
		PasswordHash: "hash-" + id,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func runUserStoreContract(t *testing.T, users UserStore) {
	ctx := context.Background()
	require.True(t, users.Available(ctx))

	ann := newContractUser(t, users)

	t.Run("email is case insensitive", func(t *testing.T) {
		dup := ann
		dup.ID = uuid.NewString()
		dup.Email = strings.ToLower(ann.Email)
		assert.ErrorIs(t, users.Create(ctx, dup), model.ErrDuplicateEmail)

		found, err := users.FindByEmail(ctx, strings.ToUpper(ann.Email))
		require.NoError(t, err)
		assert.Equal(t, ann.ID, found.ID)

		exists, err := users.ExistsByEmail(ctx, strings.ToLower(ann.Email))
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := users.FindByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrUserNotFound)
		assert.ErrorIs(t, users.UpdatePassword(ctx, uuid.NewString(), "x"), model.ErrUserNotFound)
	})

	t.Run("reset secret is consumed once", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		secretHash := "reset-" + uuid.NewString()
		require.NoError(t, users.SetResetToken(ctx, ann.ID, secretHash, now.Add(10*time.Minute)))

		_, err := users.ConsumeResetToken(ctx, secretHash, now.Add(11*time.Minute), "too-late")
		assert.ErrorIs(t, err, model.ErrResetTokenNotFound)

		consumed, err := users.ConsumeResetToken(ctx, secretHash, now, "reset-hash")
		require.NoError(t, err)
		assert.Equal(t, ann.ID, consumed.ID)

		_, err = users.ConsumeResetToken(ctx, secretHash, now, "again")
		assert.ErrorIs(t, err, model.ErrResetTokenNotFound)

		stored, err := users.FindByID(ctx, ann.ID)
		require.NoError(t, err)
		assert.Equal(t, "reset-hash", stored.PasswordHash)
		assert.Empty(t, stored.ResetTokenHash)
		assert.Nil(t, stored.ResetTokenExpiresAt)
	})

	t.Run("password update", func(t *testing.T) {
		require.NoError(t, users.UpdatePassword(ctx, ann.ID, "changed"))
		stored, err := users.FindByID(ctx, ann.ID)
		require.NoError(t, err)
		assert.Equal(t, "changed", stored.PasswordHash)
	})
}

func runChatStoreContract(t *testing.T, users UserStore, chats ChatStore) {
	ctx := context.Background()
	require.True(t, chats.Available(ctx))

	owner := newContractUser(t, users).ID
	first := time.Now().UTC().Truncate(time.Millisecond)

	stored, err := chats.Upsert(ctx, model.ChatThread{
		ChatID:    "c1",
		OwnerID:   owner,
		Title:     "first",
		Messages:  []model.Message{{Text: "hi", Sender: model.SenderUser, Timestamp: first}},
		Extra:     map[string]any{"model": "small"},
		CreatedAt: first.Add(-24 * time.Hour),
		UpdatedAt: first,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, first, stored.CreatedAt, time.Millisecond)

	stored, err = chats.Upsert(ctx, model.ChatThread{
		ChatID:    "c1",
		OwnerID:   owner,
		Title:     "edited",
		Messages:  []model.Message{{Text: "hi again", Sender: model.SenderAssistant, Timestamp: first}},
		UpdatedAt: first.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.WithinDuration(t, first, stored.CreatedAt, time.Millisecond)

	_, err = chats.Upsert(ctx, model.ChatThread{ChatID: "c2", OwnerID: owner, Title: "second", UpdatedAt: first})
	require.NoError(t, err)

	threads, err := chats.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	ids := []string{threads[0].ChatID, threads[1].ChatID}
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)

	got, err := chats.Get(ctx, owner, "c1")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hi again", got.Messages[0].Text)
	assert.WithinDuration(t, first.Add(time.Hour), got.UpdatedAt, time.Millisecond)
	assert.NotNil(t, got.Files)

	other := newContractUser(t, users).ID
	_, err = chats.Get(ctx, other, "c1")
	assert.ErrorIs(t, err, model.ErrChatNotFound)

	require.NoError(t, chats.Delete(ctx, owner, "c1"))
	assert.ErrorIs(t, chats.Delete(ctx, owner, "c1"), model.ErrChatNotFound)
	_, err = chats.Get(ctx, owner, "c1")
	assert.ErrorIs(t, err, model.ErrChatNotFound)
}

func TestMemoryStoresContract(t *testing.T) {
	t.Run("users", func(t *testing.T) {
		runUserStoreContract(t, NewMemoryUserRepository())
	})
	t.Run("chats", func(t *testing.T) {
		runChatStoreContract(t, NewMemoryUserRepository(), NewMemoryChatRepository())
	})
}
