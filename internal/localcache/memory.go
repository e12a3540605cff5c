// Package localcache holds chat threads on the client while the server is
// unreachable. Every backend stores the full thread list per owner.
package localcache

import (
	"context"
	"sync"

	"go-chat-vault/internal/model"
)

type Memory struct {
	mu      sync.Mutex
	threads map[string][]model.ChatThread
}

func NewMemory() *Memory {
	return &Memory{threads: make(map[string][]model.ChatThread)}
}

func (m *Memory) Get(_ context.Context, ownerID string) ([]model.ChatThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return cloneThreads(m.threads[ownerID]), nil
}

func (m *Memory) Set(_ context.Context, ownerID string, threads []model.ChatThread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.threads[ownerID] = cloneThreads(threads)
	return nil
}

func (m *Memory) Delete(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.threads, ownerID)
	return nil
}

func cloneThreads(threads []model.ChatThread) []model.ChatThread {
	out := make([]model.ChatThread, 0, len(threads))
	for _, t := range threads {
		t.Messages = append([]model.Message(nil), t.Messages...)
		t.Files = append([]model.FileRef(nil), t.Files...)
		out = append(out, t.Normalize())
	}
	return out
}
