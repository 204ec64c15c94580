package remote

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a 404 from the remote store. On updates the sync
// coordinator recovers by resending as a create; on deletes it is treated
// as already satisfied.
var ErrNotFound = errors.New("remote: not found")

// ErrConflict reports a 409 optimistic-lock rejection on a note update.
// Conflicts are never retried blindly; they route to the conflict resolver.
var ErrConflict = errors.New("remote: version conflict")

// ErrBadResponse reports a 2xx whose body could not be decoded. The
// server already applied the mutation, so replaying it could trip the
// optimistic lock against its own version bump; the entry stays queued
// for the next cycle instead.
var ErrBadResponse = errors.New("remote: malformed response")

// StatusError is any non-2xx response that is not a 404 or 409.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the response class is worth retrying:
// rate limiting (429) and server errors (5xx).
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable classifies an error from the client. Network-level failures
// (including timeouts) are retryable; 404/409 and other client errors are
// terminal for the current attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrBadResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// Anything else is a transport failure.
	return true
}
