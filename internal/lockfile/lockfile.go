// Package lockfile serializes read-modify-write cycles on a file between
// processes, such as two CLI invocations editing the config at once.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// staleAfter bounds how long a lock may be held. Edits take milliseconds, so
// an older lock belongs to a process that hung or was killed.
const staleAfter = 2 * time.Minute

// Lockfile is an exclusive lock represented by a file holding the owner's PID
// and the acquisition time.
type Lockfile struct {
	path   string
	file   *os.File
	pid    int
	locked bool
}

// New creates a lock at path.
func New(path string) *Lockfile {
	return &Lockfile{path: path}
}

// For returns the lock guarding target, stored next to it.
func For(target string) *Lockfile {
	return New(target + ".lock")
}

// TryAcquire takes the lock or fails with ErrLocked. A stale lock is removed
// and taken over.
func (l *Lockfile) TryAcquire() error {
	if l.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	err := l.create()
	if err == nil || !os.IsExist(err) {
		return err
	}

	stale, reason := l.checkStale()
	if !stale {
		return fmt.Errorf("%w: %s", ErrLocked, reason)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale lock (%s): %w", reason, err)
	}
	if err := l.create(); err != nil {
		if os.IsExist(err) {
			// Another process took over the stale lock first.
			return fmt.Errorf("%w: %s", ErrLocked, l.path)
		}
		return err
	}
	return nil
}

// Acquire retries TryAcquire every poll interval until it succeeds, fails for
// a reason other than contention, or ctx is done.
func (l *Lockfile) Acquire(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	for {
		err := l.TryAcquire()
		if err == nil || !errors.Is(err, ErrLocked) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", l.path, err)
		case <-time.After(poll):
		}
	}
}

func (l *Lockfile) create() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	l.file = file
	l.pid = os.Getpid()
	l.locked = true

	content := fmt.Sprintf("%d\n%s\n", l.pid, time.Now().Format(time.RFC3339))
	if _, err := l.file.WriteString(content); err != nil {
		l.Release()
		return fmt.Errorf("failed to write lock: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		l.Release()
		return fmt.Errorf("failed to sync lock: %w", err)
	}
	return nil
}

// checkStale reports whether the existing lock can be taken over, and why.
func (l *Lockfile) checkStale() (bool, string) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, "lock disappeared"
		}
		return true, "cannot read lock"
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		// A writer may be between create and write.
		if info, serr := os.Stat(l.path); serr == nil && time.Since(info.ModTime()) < time.Second {
			return false, "lock is being written"
		}
		return true, "invalid PID in lock"
	}

	if running, reason := isProcessRunning(pid); !running {
		return true, reason
	}

	if len(lines) >= 2 {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil && time.Since(ts) > staleAfter {
			return true, fmt.Sprintf("lock is older than %s", staleAfter)
		}
	}
	return false, fmt.Sprintf("held by PID %d", pid)
}

// Release gives up the lock. Releasing an unheld lock is a no-op.
func (l *Lockfile) Release() error {
	if !l.locked {
		return nil
	}

	var err error
	if l.file != nil {
		err = l.file.Close()
		l.file = nil
	}
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		err = errors.Join(err, fmt.Errorf("failed to remove lock: %w", removeErr))
	}

	l.locked = false
	return err
}

// Locked reports whether the lock is held.
func (l *Lockfile) Locked() bool {
	return l.locked
}

// Path returns the lock file path.
func (l *Lockfile) Path() string {
	return l.path
}
