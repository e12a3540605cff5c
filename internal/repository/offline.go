package repository

import (
	"context"
	"time"

	"go-chat-vault/internal/model"
)

// Offline stands in for a store that could not be reached at startup.
// Every call fails with model.ErrStoreUnavailable.
type Offline struct{}

func (Offline) Available(context.Context) bool { return false }

func (Offline) Create(context.Context, model.User) error { return model.ErrStoreUnavailable }

func (Offline) FindByID(context.Context, string) (model.User, error) {
	return model.User{}, model.ErrStoreUnavailable
}

func (Offline) FindByEmail(context.Context, string) (model.User, error) {
	return model.User{}, model.ErrStoreUnavailable
}

func (Offline) ExistsByEmail(context.Context, string) (bool, error) {
	return false, model.ErrStoreUnavailable
}

func (Offline) UpdatePassword(context.Context, string, string) error {
	return model.ErrStoreUnavailable
}

func (Offline) SetResetToken(context.Context, string, string, time.Time) error {
	return model.ErrStoreUnavailable
}

func (Offline) ConsumeResetToken(context.Context, string, time.Time, string) (model.User, error) {
	return model.User{}, model.ErrStoreUnavailable
}

func (Offline) Upsert(context.Context, model.ChatThread) (model.ChatThread, error) {
	return model.ChatThread{}, model.ErrStoreUnavailable
}

func (Offline) ListByOwner(context.Context, string) ([]model.ChatThread, error) {
	return nil, model.ErrStoreUnavailable
}

func (Offline) Get(context.Context, string, string) (model.ChatThread, error) {
	return model.ChatThread{}, model.ErrStoreUnavailable
}

func (Offline) Delete(context.Context, string, string) error {
	return model.ErrStoreUnavailable
}
