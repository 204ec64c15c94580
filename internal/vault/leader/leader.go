// Package leader provides the cross-context mutual-exclusion lock that
// elects a single sync leader per device.
//
// Multiple shynote processes (windows, app instances, a daemon) may share
// one vault. The lock is advisory and non-blocking: a context that fails
// to acquire it skips its sync cycle and defers to the current leader,
// whose work becomes visible through the shared vault.
package leader

import (
	"errors"
	"log"
	"sync"
)

// ErrNotAcquired is returned by TryAcquire when another context holds the
// lock. Callers skip the cycle rather than wait.
var ErrNotAcquired = errors.New("leader: lock held by another context")

// Lease represents a held lock. Release must be called exactly once.
type Lease interface {
	Release() error
}

// Locker hands out non-blocking named locks scoped to the device.
type Locker interface {
	// TryAcquire attempts to take the named lock without blocking.
	// Returns ErrNotAcquired when the lock is held elsewhere.
	TryAcquire(name string) (Lease, error)
}

// NoopLocker is the degraded fallback for platforms without a usable lock
// primitive: every acquisition succeeds, so concurrent leaders are
// possible. Choosing it is an explicit configuration decision and is
// logged once.
type NoopLocker struct {
	logger *log.Logger
	warn   sync.Once
}

// NewNoopLocker creates the degraded no-lock locker.
func NewNoopLocker(logger *log.Logger) *NoopLocker {
	if logger == nil {
		logger = log.Default()
	}
	return &NoopLocker{logger: logger}
}

// TryAcquire always succeeds.
func (l *NoopLocker) TryAcquire(name string) (Lease, error) {
	l.warn.Do(func() {
		l.logger.Printf("WARNING: cross-context locking disabled; concurrent sync leaders are possible")
	})
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Release() error { return nil }

// InProcessLocker coordinates leaders within a single process. Useful for
// tests and single-context deployments embedding the engine.
type InProcessLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewInProcessLocker creates an in-process locker.
func NewInProcessLocker() *InProcessLocker {
	return &InProcessLocker{held: make(map[string]bool)}
}

// TryAcquire takes the named lock if it is free.
func (l *InProcessLocker) TryAcquire(name string) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[name] {
		return nil, ErrNotAcquired
	}
	l.held[name] = true
	return &inProcessLease{locker: l, name: name}, nil
}

type inProcessLease struct {
	locker *InProcessLocker
	name   string
	once   sync.Once
}

func (l *inProcessLease) Release() error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		delete(l.locker.held, l.name)
		l.locker.mu.Unlock()
	})
	return nil
}
