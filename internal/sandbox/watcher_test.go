package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchPrunesDeletedRoot(t *testing.T) {
	base := realTempDir(t)
	keep := filepath.Join(base, "keep")
	doomed := filepath.Join(base, "doomed")
	mkdirs(t, keep, doomed)

	sb := newSandbox(t, base, keep, doomed)

	var (
		mu       sync.Mutex
		vanished []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sb.Watch(ctx, WatchOptions{
			Prune: true,
			OnVanished: func(root string) {
				mu.Lock()
				vanished = append(vanished, root)
				mu.Unlock()
			},
		})
	}()

	// Give the watcher time to register the roots.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.Remove(doomed))

	assert.Eventually(t, func() bool {
		roots := sb.Roots()
		return len(roots) == 1 && roots[0] == keep
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{doomed}, vanished)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchFollowsAddedRoots(t *testing.T) {
	base := realTempDir(t)
	first := filepath.Join(base, "first")
	later := filepath.Join(base, "later")
	mkdirs(t, first, later)

	sb := newSandbox(t, base, first)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gone := make(chan string, 1)
	go func() {
		_ = sb.Watch(ctx, WatchOptions{OnVanished: func(root string) { gone <- root }})
	}()

	time.Sleep(100 * time.Millisecond)
	_, err := sb.AddAllowedDirectory(later)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.Remove(later))

	select {
	case root := <-gone:
		assert.Equal(t, later, root)
	case <-time.After(5 * time.Second):
		t.Fatal("no vanish notification for added root")
	}

	// Without pruning the root stays and is reported missing.
	roots := sb.ListAllowedDirectories()
	require.Len(t, roots, 2)
	assert.True(t, roots[1].Missing)
}
