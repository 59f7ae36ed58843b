package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/morozRed/medkb/internal/artifacts"
)

type countingReloader struct {
	calls atomic.Int32
}

func (r *countingReloader) ReloadIfChanged() (bool, error) {
	r.calls.Add(1)
	return true, nil
}

func TestWatcherReloadsOnArtifactWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	reloader := &countingReloader{}
	w, err := New(dir, reloader, zap.NewNop())
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	path := filepath.Join(dir, artifacts.VocabularyFile)
	require.NoError(t, os.WriteFile(path, []byte("fever,\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("fever,\ncough,\n"), 0644))

	require.Eventually(t, func() bool {
		return reloader.calls.Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)

	w.Stop()
	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Events, 1)
	assert.GreaterOrEqual(t, stats.Reloads, 1)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	reloader := &countingReloader{}
	w, err := New(dir, reloader, nil)
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".medkb-state.json"), []byte("{}"), 0644))
	time.Sleep(150 * time.Millisecond)

	w.Stop()
	assert.Equal(t, int32(0), reloader.calls.Load())
	assert.Equal(t, 0, w.Stats().Events)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(t.TempDir(), &countingReloader{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestStartFailsForMissingDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(filepath.Join(t.TempDir(), "missing"), &countingReloader{}, nil)
	require.NoError(t, err)
	require.Error(t, w.Start(context.Background()))
	w.Stop()
}
