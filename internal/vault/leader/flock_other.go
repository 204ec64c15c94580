//go:build !unix

package leader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileLocker on non-unix platforms uses exclusive-create lock files. The
// lock is removed on release; a crashed holder leaves a stale file behind,
// which the next acquisition attempt reports as held. This is a weaker
// guarantee than flock and callers may prefer NoopLocker plus external
// supervision on these platforms.
type FileLocker struct {
	dir string
}

// NewFileLocker creates a locker placing lock files under dir.
func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{dir: dir}
}

// TryAcquire creates <dir>/<name>.lock with O_EXCL. Returns ErrNotAcquired
// when the file already exists.
func (l *FileLocker) TryAcquire(name string) (Lease, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := filepath.Join(l.dir, name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, ErrNotAcquired
		}
		return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
	}
	_ = f.Close()

	return &fileLease{path: path}, nil
}

type fileLease struct {
	path string
	once sync.Once
	err  error
}

// Release removes the lock file.
func (l *fileLease) Release() error {
	l.once.Do(func() {
		if err := os.Remove(l.path); err != nil {
			l.err = fmt.Errorf("failed to remove lock file: %w", err)
		}
	})
	return l.err
}
