package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	lockRetryDelay = 100 * time.Millisecond
	lockWaitLimit  = 5 * time.Second
	lockStaleAfter = 30 * time.Second
)

var errLockTimeout = errors.New("timed out waiting for session file lock")

// fileLock is an exclusive lock held through a sibling "<path>.lock" file, so
// that several CLI processes sharing one session file serialize their writes.
type fileLock struct {
	f    *os.File
	path string
}

// acquireFileLock creates "<path>.lock" exclusively, waiting while another
// holder has it. Lock files older than lockStaleAfter are treated as abandoned.
func acquireFileLock(ctx context.Context, path string) (*fileLock, error) {
	lockPath := path + ".lock"
	deadline := time.Now().Add(lockWaitLimit)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// pid helps when debugging a stuck lock
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			return &fileLock{f: f, path: lockPath}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil &&
			time.Since(info.ModTime()) > lockStaleAfter {
			if rmErr := os.Remove(lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, fmt.Errorf("remove stale lock %s: %w", lockPath, rmErr)
			}
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %v", errLockTimeout, lockWaitLimit)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

// release drops the lock. Calling it twice returns the os.Remove error.
func (l *fileLock) release() error {
	if l.f != nil {
		l.f.Close()
		l.f = nil
	}
	return os.Remove(l.path)
}
