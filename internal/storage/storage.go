package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go-chat-vault/internal/model"
)

// BlobStore holds attachment bytes under slash separated keys.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// LocalStore keeps blobs on disk below a validated root.
type LocalStore struct {
	validator *PathValidator
}

func NewLocal(root string) (*LocalStore, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStore{validator: validator}, nil
}

func (s *LocalStore) RootAbs() string {
	return s.validator.RootAbs()
}

// Put writes to a temporary file first so readers never see a partial blob.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (int64, error) {
	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(resolved), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("write blob %q: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return 0, fmt.Errorf("commit blob %q: %w", key, err)
	}

	return written, nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, model.ErrFileNotFound
	}

	return file, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.ErrFileNotFound
		}
		return fmt.Errorf("remove %q: %w", key, err)
	}

	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
