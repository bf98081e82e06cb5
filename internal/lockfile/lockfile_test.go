package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// unusedPID is above the largest pid_max Linux allows.
const unusedPID = 1<<22 + 1

func writeLock(t *testing.T, path string, pid int, at time.Time) {
	t.Helper()
	content := fmt.Sprintf("%d\n%s\n", pid, at.Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create fake lock: %v", err)
	}
}

func TestLockfile_AcquireRelease(t *testing.T) {
	lock := For(filepath.Join(t.TempDir(), "config.json"))

	if err := lock.TryAcquire(); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if !lock.Locked() {
		t.Error("Lock should be locked")
	}
	if filepath.Base(lock.Path()) != "config.json.lock" {
		t.Errorf("Unexpected lock path %s", lock.Path())
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
	if lock.Locked() {
		t.Error("Lock should not be locked after release")
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Errorf("Lock file should be removed, stat: %v", err)
	}

	if err := lock.TryAcquire(); err != nil {
		t.Fatalf("Failed to acquire lock after release: %v", err)
	}
	lock.Release()
}

func TestLockfile_AlreadyLocked(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	lock1 := New(lockPath)
	if err := lock1.TryAcquire(); err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2 := New(lockPath)
	if err := lock2.TryAcquire(); err == nil {
		t.Error("Expected error when acquiring already held lock")
		defer lock2.Release()
	} else if !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got: %v", err)
	}
}

func TestLockfile_AcquireWaits(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	holder := New(lockPath)
	if err := holder.TryAcquire(); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		holder.Release()
	}()

	waiter := New(lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := waiter.Acquire(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("Acquire should succeed once the holder releases: %v", err)
	}
	waiter.Release()
}

func TestLockfile_AcquireTimeout(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	holder := New(lockPath)
	if err := holder.TryAcquire(); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer holder.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := New(lockPath).Acquire(ctx, 10*time.Millisecond)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked after timeout, got: %v", err)
	}
}

func TestLockfile_StaleProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PID probing differs on windows")
	}
	lockPath := filepath.Join(t.TempDir(), "test.lock")
	writeLock(t, lockPath, unusedPID, time.Now())

	lock := New(lockPath)
	if err := lock.TryAcquire(); err != nil {
		t.Fatalf("Failed to acquire stale lock: %v", err)
	}
	defer lock.Release()

	if !lock.Locked() {
		t.Error("Lock should be locked")
	}
}

func TestLockfile_StaleByTime(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")
	writeLock(t, lockPath, os.Getpid(), time.Now().Add(-time.Hour))

	lock := New(lockPath)
	if err := lock.TryAcquire(); err != nil {
		t.Fatalf("Failed to acquire old lock: %v", err)
	}
	defer lock.Release()
}

func TestLockfile_LiveHolderIsRespected(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")
	writeLock(t, lockPath, os.Getpid(), time.Now())

	err := New(lockPath).TryAcquire()
	if !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked for a live holder, got: %v", err)
	}
}

func TestLockfile_ReleaseNotLocked(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "test.lock"))

	if err := lock.Release(); err != nil {
		t.Errorf("Expected no error when releasing unlocked lock, got: %v", err)
	}
}
