package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-chat-vault/internal/model"
)

func TestLocalStorePutOpenDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	written, err := store.Put(ctx, "owner-1/blob.txt", strings.NewReader("hello world"), 11, "text/plain")
	require.NoError(t, err)
	require.EqualValues(t, 11, written)

	reader, err := store.Open(ctx, "owner-1/blob.txt")
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.Equal(t, "hello world", string(content))

	entries, err := os.ReadDir(filepath.Join(store.RootAbs(), "owner-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary upload files must not be left behind")

	require.NoError(t, store.Delete(ctx, "owner-1/blob.txt"))
	_, err = store.Open(ctx, "owner-1/blob.txt")
	require.ErrorIs(t, err, model.ErrFileNotFound)
	require.ErrorIs(t, store.Delete(ctx, "owner-1/blob.txt"), model.ErrFileNotFound)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(ctx, "../outside.txt", bytes.NewReader([]byte("x")), 1, "")
	require.Error(t, err)

	_, err = store.Put(ctx, "/", bytes.NewReader([]byte("x")), 1, "")
	require.Error(t, err)

	_, err = store.Open(ctx, "owner-1")
	require.ErrorIs(t, err, model.ErrFileNotFound)
}

func TestLocalStorePutHonoursCancellation(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Put(ctx, "owner-1/blob.bin", strings.NewReader("data"), 4, "")
	require.ErrorIs(t, err, context.Canceled)

	_, err = store.Open(context.Background(), "owner-1/blob.bin")
	require.ErrorIs(t, err, model.ErrFileNotFound)
}
