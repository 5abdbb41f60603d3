package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const lockRetryDelay = 5 * time.Millisecond

// lockWaitLimit bounds how long Add and Commit wait for another snap process.
var lockWaitLimit = 2 * time.Second

// errLockHeld is returned by tryLockFile when another open file holds the lock.
var errLockHeld = errors.New("lock held")

const repoLockName = "snap.lock"

// withLock runs fn while holding an exclusive OS lock on .snap/snap.lock.
// Staging appends and the whole commit sequence run under it so two
// processes cannot interleave a read-build-clear with a concurrent append.
// The kernel drops the lock when the holder exits, however it exits, so a
// leftover snap.lock file never blocks later commands.
func (r *Repo) withLock(fn func() error) error {
	f, err := lockRepo(r.SnapDir)
	if err != nil {
		return err
	}
	defer unlockRepo(f)
	return fn()
}

// lockRepo opens .snap/snap.lock and takes the lock, retrying until
// lockWaitLimit. The holder's pid is written into the file for diagnostics.
func lockRepo(snapDir string) (*os.File, error) {
	lockPath := filepath.Join(snapDir, repoLockName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}

	deadline := time.Now().Add(lockWaitLimit)
	for {
		err := tryLockFile(f)
		if err == nil {
			break
		}
		if !errors.Is(err, errLockHeld) {
			_ = f.Close()
			return nil, fmt.Errorf("lock %q: %w", lockPath, err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %q held by pid %s", ErrLocked, lockPath, lockHolder(lockPath))
		}
		time.Sleep(lockRetryDelay)
	}

	pid := strconv.Itoa(os.Getpid()) + "\n"
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(pid), 0)
	}
	return f, nil
}

func unlockRepo(f *os.File) {
	_ = f.Truncate(0)
	_ = unlockFile(f)
	_ = f.Close()
}

func lockHolder(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return "unknown"
	}
	return strings.TrimSpace(string(data))
}

// acquireLock creates lockPath exclusively, the lock-file half of the ref
// update's lock-file + rename scheme.
func acquireLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(lockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("%w: timeout waiting for %q", ErrLocked, lockPath)
			}
			time.Sleep(lockRetryDelay)
			continue
		}
		return nil, err
	}
}
