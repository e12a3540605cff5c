package repository

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go-chat-vault/internal/model"
)

// MemoryUserRepository keeps users in process memory. It backs STORE_DRIVER=memory and tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]model.User
	byEmail map[string]string
	down    atomic.Bool
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    map[string]model.User{},
		byEmail: map[string]string{},
	}
}

// SetAvailable toggles a simulated outage.
func (r *MemoryUserRepository) SetAvailable(available bool) {
	r.down.Store(!available)
}

func (r *MemoryUserRepository) Available(context.Context) bool {
	return !r.down.Load()
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) error {
	if r.down.Load() {
		return model.ErrStoreUnavailable
	}

	key := emailKey(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[key]; exists {
		return model.ErrDuplicateEmail
	}
	r.byID[u.ID] = u
	r.byEmail[key] = u.ID
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	if r.down.Load() {
		return model.User{}, model.ErrStoreUnavailable
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	if r.down.Load() {
		return model.User{}, model.ErrStoreUnavailable
	}

	r.mu.RLock()
	id, ok := r.byEmail[emailKey(email)]
	r.mu.RUnlock()
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *MemoryUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	if r.down.Load() {
		return false, model.ErrStoreUnavailable
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[emailKey(email)]
	return ok, nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return r.mutate(id, func(u *model.User) {
		u.PasswordHash = passwordHash
		u.ResetTokenHash = ""
		u.ResetTokenExpiresAt = nil
	})
}

func (r *MemoryUserRepository) SetResetToken(_ context.Context, id string, tokenHash string, expiresAt time.Time) error {
	return r.mutate(id, func(u *model.User) {
		u.ResetTokenHash = tokenHash
		expires := expiresAt.UTC()
		u.ResetTokenExpiresAt = &expires
	})
}

func (r *MemoryUserRepository) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (model.User, error) {
	if r.down.Load() {
		return model.User{}, model.ErrStoreUnavailable
	}
	if tokenHash == "" {
		return model.User{}, model.ErrResetTokenNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.byID {
		if u.ResetTokenHash != tokenHash || u.ResetTokenExpiresAt == nil || !now.Before(*u.ResetTokenExpiresAt) {
			continue
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash = ""
		u.ResetTokenExpiresAt = nil
		u.UpdatedAt = now.UTC()
		r.byID[id] = u
		return u, nil
	}
	return model.User{}, model.ErrResetTokenNotFound
}

func (r *MemoryUserRepository) mutate(id string, fn func(u *model.User)) error {
	if r.down.Load() {
		return model.ErrStoreUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return model.ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryChatRepository keeps chat threads in process memory.
type MemoryChatRepository struct {
	mu      sync.RWMutex
	threads map[chatKey]model.ChatThread
	down    atomic.Bool
}

type chatKey struct {
	owner string
	chat  string
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{threads: map[chatKey]model.ChatThread{}}
}

func (r *MemoryChatRepository) SetAvailable(available bool) {
	r.down.Store(!available)
}

func (r *MemoryChatRepository) Available(context.Context) bool {
	return !r.down.Load()
}

func (r *MemoryChatRepository) Upsert(_ context.Context, thread model.ChatThread) (model.ChatThread, error) {
	if r.down.Load() {
		return model.ChatThread{}, model.ErrStoreUnavailable
	}

	key := chatKey{owner: thread.OwnerID, chat: thread.ChatID}

	r.mu.Lock()
	defer r.mu.Unlock()

	// created_at is the first save's updated_at.
	thread.CreatedAt = thread.UpdatedAt
	if existing, ok := r.threads[key]; ok {
		thread.CreatedAt = existing.CreatedAt
	}
	stored := cloneThread(thread.Normalize())
	r.threads[key] = stored
	return cloneThread(stored), nil
}

func (r *MemoryChatRepository) ListByOwner(_ context.Context, ownerID string) ([]model.ChatThread, error) {
	if r.down.Load() {
		return nil, model.ErrStoreUnavailable
	}

	r.mu.RLock()
	out := make([]model.ChatThread, 0)
	for key, thread := range r.threads {
		if key.owner == ownerID {
			out = append(out, cloneThread(thread))
		}
	}
	r.mu.RUnlock()

	model.SortByUpdatedDesc(out)
	return out, nil
}

func (r *MemoryChatRepository) Get(_ context.Context, ownerID string, chatID string) (model.ChatThread, error) {
	if r.down.Load() {
		return model.ChatThread{}, model.ErrStoreUnavailable
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	thread, ok := r.threads[chatKey{owner: ownerID, chat: chatID}]
	if !ok {
		return model.ChatThread{}, model.ErrChatNotFound
	}
	return cloneThread(thread), nil
}

func (r *MemoryChatRepository) Delete(_ context.Context, ownerID string, chatID string) error {
	if r.down.Load() {
		return model.ErrStoreUnavailable
	}

	key := chatKey{owner: ownerID, chat: chatID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[key]; !ok {
		return model.ErrChatNotFound
	}
	delete(r.threads, key)
	return nil
}

func cloneThread(t model.ChatThread) model.ChatThread {
	out := t
	out.Messages = make([]model.Message, len(t.Messages))
	for i, m := range t.Messages {
		m.Files = append([]model.FileRef(nil), m.Files...)
		out.Messages[i] = m
	}
	out.Files = append(make([]model.FileRef, 0, len(t.Files)), t.Files...)
	if t.Extra != nil {
		out.Extra = make(map[string]any, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
