//go:build unix

package leader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// FileLocker elects a leader across processes with a non-blocking flock on
// a lock file in the vault directory. The kernel releases the lock if the
// holder dies, so a crashed leader never wedges sync.
type FileLocker struct {
	dir string
}

// NewFileLocker creates a locker placing lock files under dir.
func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{dir: dir}
}

// TryAcquire opens <dir>/<name>.lock and takes an exclusive, non-blocking
// flock on it. Returns ErrNotAcquired when another process holds it.
func (l *FileLocker) TryAcquire(name string) (Lease, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := filepath.Join(l.dir, name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrNotAcquired
		}
		return nil, fmt.Errorf("failed to flock %s: %w", path, err)
	}

	return &fileLease{file: f}, nil
}

type fileLease struct {
	file *os.File
	once sync.Once
	err  error
}

// Release drops the flock by closing the file descriptor.
func (l *fileLease) Release() error {
	l.once.Do(func() {
		if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
			l.err = fmt.Errorf("failed to unlock: %w", err)
		}
		if err := l.file.Close(); err != nil && l.err == nil {
			l.err = fmt.Errorf("failed to close lock file: %w", err)
		}
	})
	return l.err
}
