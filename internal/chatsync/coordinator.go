// Package chatsync keeps a client-side copy of chat threads consistent with
// the server. Saves make one remote attempt and fall back to the local cache;
// Reconcile later pushes cached threads back up.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go-chat-vault/internal/model"
)

// RemoteStore is the authoritative store. The owner is implied by the
// remote session, so only the local cache is keyed by owner id.
type RemoteStore interface {
	SaveThread(ctx context.Context, thread model.ChatThread) (model.ChatThread, error)
	ListThreads(ctx context.Context) ([]model.ChatThread, error)
	DeleteThread(ctx context.Context, chatID string) error
}

type LocalCache interface {
	Get(ctx context.Context, ownerID string) ([]model.ChatThread, error)
	Set(ctx context.Context, ownerID string, threads []model.ChatThread) error
	Delete(ctx context.Context, ownerID string) error
}

type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

var ErrOwnerRequired = errors.New("owner id is required")

type SaveResult struct {
	Thread       model.ChatThread
	SavedLocally bool
}

// ReconcileReport lists chat ids per outcome. Dropped holds threads that
// failed to push and were cleared from the cache anyway.
type ReconcileReport struct {
	Pushed  []string `json:"pushed"`
	Failed  []string `json:"failed"`
	Dropped []string `json:"dropped"`
}

type Coordinator struct {
	remote RemoteStore
	local  LocalCache
	// serialises read-modify-write on the local cache
	mu sync.Mutex
}

func New(remote RemoteStore, local LocalCache) *Coordinator {
	return &Coordinator{remote: remote, local: local}
}

// SaveThread makes exactly one remote attempt. On success any stale cached
// copy of the thread is dropped. On any remote error the full thread is
// written to the local cache and the result is marked SavedLocally. Only a
// failing local write is returned as an error.
func (c *Coordinator) SaveThread(ctx context.Context, thread model.ChatThread) (SaveResult, error) {
	ownerID := strings.TrimSpace(thread.OwnerID)
	if ownerID == "" {
		return SaveResult{}, ErrOwnerRequired
	}
	thread = thread.Normalize()

	saved, err := c.remote.SaveThread(ctx, thread)
	if err == nil {
		c.mu.Lock()
		c.evictLocal(ctx, ownerID, thread.ChatID)
		c.mu.Unlock()
		return SaveResult{Thread: saved.Normalize()}, nil
	}

	slog.Warn("remote save failed, keeping thread locally", "owner_id", ownerID, "chat_id", thread.ChatID, "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()

	threads, err := c.local.Get(ctx, ownerID)
	if err != nil {
		return SaveResult{}, fmt.Errorf("read local cache: %w", err)
	}
	threads = upsertLocal(threads, thread)
	if err := c.local.Set(ctx, ownerID, threads); err != nil {
		return SaveResult{}, fmt.Errorf("write local cache: %w", err)
	}

	return SaveResult{Thread: thread, SavedLocally: true}, nil
}

// ListThreads answers from the remote store when it can, otherwise from the
// local cache. Both paths return threads newest first.
func (c *Coordinator) ListThreads(ctx context.Context, ownerID string) ([]model.ChatThread, Source, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, "", ErrOwnerRequired
	}

	threads, err := c.remote.ListThreads(ctx)
	if err == nil {
		return sorted(threads), SourceRemote, nil
	}

	slog.Warn("remote list failed, reading local cache", "owner_id", ownerID, "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()

	threads, err = c.local.Get(ctx, ownerID)
	if err != nil {
		return nil, "", fmt.Errorf("read local cache: %w", err)
	}
	return sorted(threads), SourceLocal, nil
}

// DeleteThread is best effort: a remote failure removes the thread from the
// local cache instead, and local failures are only logged. A remote success
// also drops any cached copy so Reconcile cannot push it back.
func (c *Coordinator) DeleteThread(ctx context.Context, ownerID string, chatID string) Source {
	source := SourceRemote
	if err := c.remote.DeleteThread(ctx, chatID); err != nil {
		slog.Warn("remote delete failed, removing from local cache", "owner_id", ownerID, "chat_id", chatID, "error", err)
		source = SourceLocal
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocal(ctx, ownerID, chatID)
	return source
}

// evictLocal removes chatID from the owner's cache. Callers hold c.mu.
func (c *Coordinator) evictLocal(ctx context.Context, ownerID string, chatID string) {
	threads, err := c.local.Get(ctx, ownerID)
	if err != nil {
		slog.Error("local cache read failed", "owner_id", ownerID, "chat_id", chatID, "error", err)
		return
	}

	kept := make([]model.ChatThread, 0, len(threads))
	for _, t := range threads {
		if t.ChatID != chatID {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(threads) {
		return
	}
	if err := c.local.Set(ctx, ownerID, kept); err != nil {
		slog.Error("local cache write failed", "owner_id", ownerID, "chat_id", chatID, "error", err)
	}
}

// Reconcile pushes every cached thread to the remote store in order,
// continuing past failures, then clears the owner's cache. Threads that
// failed to push are cleared too and reported in Dropped. A cancelled
// context stops the pass and leaves the cache untouched.
func (c *Coordinator) Reconcile(ctx context.Context, ownerID string) (ReconcileReport, error) {
	if strings.TrimSpace(ownerID) == "" {
		return ReconcileReport{}, ErrOwnerRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	report := ReconcileReport{Pushed: []string{}, Failed: []string{}, Dropped: []string{}}

	threads, err := c.local.Get(ctx, ownerID)
	if err != nil {
		return report, fmt.Errorf("read local cache: %w", err)
	}
	if len(threads) == 0 {
		return report, nil
	}

	for _, thread := range threads {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("reconcile interrupted: %w", err)
		}

		if _, err := c.remote.SaveThread(ctx, thread); err != nil {
			slog.Warn("reconcile push failed", "owner_id", ownerID, "chat_id", thread.ChatID, "error", err)
			report.Failed = append(report.Failed, thread.ChatID)
			continue
		}
		report.Pushed = append(report.Pushed, thread.ChatID)
	}

	if err := c.local.Delete(ctx, ownerID); err != nil {
		return report, fmt.Errorf("clear local cache: %w", err)
	}
	report.Dropped = append(report.Dropped, report.Failed...)

	if len(report.Dropped) > 0 {
		slog.Warn("reconcile dropped unsynced threads", "owner_id", ownerID, "dropped", report.Dropped)
	}
	slog.Info("reconcile finished", "owner_id", ownerID, "pushed", len(report.Pushed), "failed", len(report.Failed))
	return report, nil
}

func upsertLocal(threads []model.ChatThread, thread model.ChatThread) []model.ChatThread {
	for i := range threads {
		if threads[i].ChatID == thread.ChatID {
			threads[i] = thread
			return threads
		}
	}
	return append(threads, thread)
}

func sorted(threads []model.ChatThread) []model.ChatThread {
	out := make([]model.ChatThread, 0, len(threads))
	for _, t := range threads {
		out = append(out, t.Normalize())
	}
	model.SortByUpdatedDesc(out)
	return out
}
