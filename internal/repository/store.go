package repository

import (
	"context"
	"time"

	"go-chat-vault/internal/model"
)

// UserStore is the credential store. Emails are compared case-insensitively.
type UserStore interface {
	Available(ctx context.Context) bool
	Create(ctx context.Context, u model.User) error
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// UpdatePassword replaces the hash and clears any pending reset token.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken sets passwordHash on the user whose reset hash matches
	// and has not expired at now, clearing the reset fields in the same write.
	// A secret can be consumed once.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (model.User, error)
}

// ChatStore persists chat threads keyed by (OwnerID, ChatID).
type ChatStore interface {
	Available(ctx context.Context) bool
	// Upsert atomically replaces or inserts the thread and returns the stored version.
	Upsert(ctx context.Context, thread model.ChatThread) (model.ChatThread, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.ChatThread, error)
	Get(ctx context.Context, ownerID string, chatID string) (model.ChatThread, error)
	Delete(ctx context.Context, ownerID string, chatID string) error
}
