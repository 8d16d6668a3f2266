package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_SignalsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "allowlist.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(nil)
	defer w.Close()

	ch, err := w.Watch(ctx, []string{target})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(target, []byte(`{"updated":true}`), 0o600))

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change signal")
	}
}

func TestWatcher_IgnoresUnrelatedFilesInSameDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "allowlist.json")
	other := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(nil)
	defer w.Close()

	ch, err := w.Watch(ctx, []string{target})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(other, []byte("noise"), 0o600))

	select {
	case <-ch:
		t.Fatal("received signal for unrelated file change")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_RejectsEmptyPathList(t *testing.T) {
	w := NewWatcher(nil)
	defer w.Close()

	_, err := w.Watch(context.Background(), nil)
	assert.Error(t, err)
}

func TestWatcher_ClosedWatcherRejectsWatch(t *testing.T) {
	w := NewWatcher(nil)
	require.NoError(t, w.Close())

	_, err := w.Watch(context.Background(), []string{"/tmp/whatever"})
	assert.Error(t, err)
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w := NewWatcher(nil)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatcher_ContextCancelClosesChannel(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(nil)
	defer w.Close()

	ch, err := w.Watch(ctx, []string{target})
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel close after cancel")
	}
}
