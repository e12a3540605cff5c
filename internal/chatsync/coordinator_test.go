package chatsync

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-chat-vault/internal/client/apiclient"
	"go-chat-vault/internal/localcache"
	"go-chat-vault/internal/model"
)

var errDown = errors.New("connection refused")

type fakeRemote struct {
	mu       sync.Mutex
	down     bool
	rejected map[string]bool
	threads  map[string]model.ChatThread
	saves    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rejected: map[string]bool{}, threads: map[string]model.ChatThread{}}
}

func (f *fakeRemote) SaveThread(_ context.Context, thread model.ChatThread) (model.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.saves++
	if f.down || f.rejected[thread.ChatID] {
		return model.ChatThread{}, errDown
	}
	f.threads[thread.ChatID] = thread
	return thread, nil
}

func (f *fakeRemote) ListThreads(context.Context) ([]model.ChatThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		return nil, errDown
	}
	out := make([]model.ChatThread, 0, len(f.threads))
	for _, t := range f.threads {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRemote) DeleteThread(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		return errDown
	}
	delete(f.threads, chatID)
	return nil
}

type brokenCache struct{ *localcache.Memory }

func (*brokenCache) Set(context.Context, string, []model.ChatThread) error {
	return errors.New("disk full")
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func thread(id string, offset time.Duration, text string) model.ChatThread {
	return model.ChatThread{
		ChatID:    id,
		OwnerID:   "user-ann",
		Title:     "thread " + id,
		Messages:  []model.Message{{Text: text, Sender: model.SenderUser, Timestamp: base}},
		UpdatedAt: base.Add(offset),
	}
}

func TestSaveThread_RemoteSuccess(t *testing.T) {
	remote := newFakeRemote()
	cache := localcache.NewMemory()
	c := New(remote, cache)
	ctx := context.Background()

	result, err := c.SaveThread(ctx, thread("c1", 0, "hello"))
	require.NoError(t, err)
	assert.False(t, result.SavedLocally)

	result, err = c.SaveThread(ctx, thread("c1", time.Minute, "edited"))
	require.NoError(t, err)
	assert.False(t, result.SavedLocally)

	threads, source, err := c.ListThreads(ctx, "user-ann")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, source)
	require.Len(t, threads, 1)
	assert.Equal(t, "edited", threads[0].Messages[0].Text)

	cached, err := cache.Get(ctx, "user-ann")
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestSaveThread_FallsBackToLocal(t *testing.T) {
	remote := newFakeRemote()
	remote.down = true
	c := New(remote, localcache.NewMemory())
	ctx := context.Background()

	result, err := c.SaveThread(ctx, thread("c1", 0, "hello"))
	require.NoError(t, err)
	assert.True(t, result.SavedLocally)
	assert.Equal(t, 1, remote.saves)

	_, err = c.SaveThread(ctx, thread("c1", time.Minute, "edited"))
	require.NoError(t, err)
	_, err = c.SaveThread(ctx, thread("c2", 2*time.Minute, "second"))
	require.NoError(t, err)

	threads, source, err := c.ListThreads(ctx, "user-ann")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	require.Len(t, threads, 2)
	assert.Equal(t, "c2", threads[0].ChatID)
	assert.Equal(t, "edited", threads[1].Messages[0].Text)
	assert.NotNil(t, threads[0].Files)
}

func TestSaveThread_LocalFailureIsReturned(t *testing.T) {
	remote := newFakeRemote()
	remote.down = true
	c := New(remote, &brokenCache{Memory: localcache.NewMemory()})

	_, err := c.SaveThread(context.Background(), thread("c1", 0, "hello"))
	assert.ErrorContains(t, err, "disk full")
}

func TestSaveThread_RequiresOwner(t *testing.T) {
	c := New(newFakeRemote(), localcache.NewMemory())
	t1 := thread("c1", 0, "x")
	t1.OwnerID = " "

	_, err := c.SaveThread(context.Background(), t1)
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestListThreads_SameShapeFromBothSources(t *testing.T) {
	remote := newFakeRemote()
	c := New(remote, localcache.NewMemory())
	ctx := context.Background()

	_, err := c.SaveThread(ctx, thread("c1", 0, "hello"))
	require.NoError(t, err)
	fromRemote, _, err := c.ListThreads(ctx, "user-ann")
	require.NoError(t, err)

	remote.down = true
	_, err = c.SaveThread(ctx, thread("c1", 0, "hello"))
	require.NoError(t, err)
	fromLocal, source, err := c.ListThreads(ctx, "user-ann")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)

	assert.Equal(t, fromRemote, fromLocal)
}

func TestDeleteThread(t *testing.T) {
	remote := newFakeRemote()
	cache := localcache.NewMemory()
	c := New(remote, cache)
	ctx := context.Background()

	_, err := c.SaveThread(ctx, thread("c1", 0, "hello"))
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, c.DeleteThread(ctx, "user-ann", "c1"))
	assert.Empty(t, remote.threads)

	remote.down = true
	_, err = c.SaveThread(ctx, thread("c2", 0, "a"))
	require.NoError(t, err)
	_, err = c.SaveThread(ctx, thread("c3", 0, "b"))
	require.NoError(t, err)

	assert.Equal(t, SourceLocal, c.DeleteThread(ctx, "user-ann", "c2"))
	cached, err := cache.Get(ctx, "user-ann")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "c3", cached[0].ChatID)

	assert.Equal(t, SourceLocal, c.DeleteThread(ctx, "user-ann", "missing"))
}

func TestRemoteSuccessDropsStaleLocalCopy(t *testing.T) {
	remote := newFakeRemote()
	cache := localcache.NewMemory()
	c := New(remote, cache)
	ctx := context.Background()

	remote.down = true
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := c.SaveThread(ctx, thread(id, 0, "offline "+id))
		require.NoError(t, err)
	}

	remote.down = false
	_, err := c.SaveThread(ctx, thread("c1", time.Hour, "online"))
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, c.DeleteThread(ctx, "user-ann", "c2"))

	cached, err := cache.Get(ctx, "user-ann")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "c3", cached[0].ChatID)

	report, err := c.Reconcile(ctx, "user-ann")
	require.NoError(t, err)
	assert.Equal(t, []string{"c3"}, report.Pushed)
	assert.Equal(t, "online", remote.threads["c1"].Messages[0].Text)
	assert.NotContains(t, remote.threads, "c2")
}

func TestReconcile(t *testing.T) {
	remote := newFakeRemote()
	cache := localcache.NewMemory()
	c := New(remote, cache)
	ctx := context.Background()

	remote.down = true
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := c.SaveThread(ctx, thread(id, 0, id))
		require.NoError(t, err)
	}

	remote.down = false
	remote.rejected["c2"] = true

	report, err := c.Reconcile(ctx, "user-ann")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, report.Pushed)
	assert.Equal(t, []string{"c2"}, report.Failed)
	assert.Equal(t, []string{"c2"}, report.Dropped)

	cached, err := cache.Get(ctx, "user-ann")
	require.NoError(t, err)
	assert.Empty(t, cached)

	assert.Contains(t, remote.threads, "c1")
	assert.Contains(t, remote.threads, "c3")
	assert.NotContains(t, remote.threads, "c2")

	report, err = c.Reconcile(ctx, "user-ann")
	require.NoError(t, err)
	assert.Empty(t, report.Pushed)
}

func TestReconcile_CancelledContextKeepsCache(t *testing.T) {
	remote := newFakeRemote()
	remote.down = true
	cache := localcache.NewMemory()
	c := New(remote, cache)

	_, err := c.SaveThread(context.Background(), thread("c1", 0, "x"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Reconcile(ctx, "user-ann")
	assert.ErrorIs(t, err, context.Canceled)

	cached, err := cache.Get(context.Background(), "user-ann")
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestCoordinatorWithUnreachableServer(t *testing.T) {
	server := httptest.NewServer(nil)
	addr := server.URL
	server.Close()

	client, err := apiclient.New(addr, apiclient.WithToken("anything"))
	require.NoError(t, err)
	c := New(client, localcache.NewMemory())
	ctx := context.Background()

	result, err := c.SaveThread(ctx, thread("c1", 0, "offline"))
	require.NoError(t, err)
	assert.True(t, result.SavedLocally)

	threads, source, err := c.ListThreads(ctx, "user-ann")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	require.Len(t, threads, 1)
	assert.Equal(t, "offline", threads[0].Messages[0].Text)
}
