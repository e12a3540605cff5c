package localcache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go-chat-vault/internal/model"
)

// File keeps one JSON document per owner under dir.
type File struct {
	dir string
	mu  sync.Mutex
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Get(_ context.Context, ownerID string) ([]model.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path(ownerID))
	if errors.Is(err, os.ErrNotExist) {
		return []model.ChatThread{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var threads []model.ChatThread
	if err := json.Unmarshal(raw, &threads); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return cloneThreads(threads), nil
}

func (f *File) Set(_ context.Context, ownerID string, threads []model.ChatThread) error {
	raw, err := json.MarshalIndent(cloneThreads(threads), "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmpName, f.path(ownerID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(ownerID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache: %w", err)
	}
	return nil
}

// owner ids come from tokens, so they are hex encoded before touching the filesystem
func (f *File) path(ownerID string) string {
	return filepath.Join(f.dir, hex.EncodeToString([]byte(ownerID))+".json")
}
