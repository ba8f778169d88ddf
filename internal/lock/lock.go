package lock

import "errors"

var (
	// ErrClosed is returned by operations on a closed lock.
	ErrClosed = errors.New("lock: closed")

	// ErrNotHeld is returned by Release when the lock is not held.
	ErrNotHeld = errors.New("lock: not held")
)

// Lock is an exclusive, non-reentrant lock whose every transition can
// report failure. Two interchangeable realizations exist; both expose
// identical failure semantics:
//
//   - Acquire after Close returns ErrClosed, including acquirers that
//     were already blocked when Close ran
//   - Release when not held returns ErrNotHeld
//   - a second Close returns ErrClosed
//
// Close may be called by the current holder: it then releases and
// destroys atomically, so no other goroutine can slip into the critical
// section between the release and the destruction.
type Lock interface {
	// Acquire blocks until the lock is held.
	Acquire() error

	// TryAcquire attempts to take the lock without blocking.
	// Returns true if acquired, false if it was not available.
	TryAcquire() (bool, error)

	// Release gives up a held lock.
	Release() error

	// Close destroys the lock, waking blocked acquirers with ErrClosed.
	Close() error
}

// New returns the default realization.
func New() Lock {
	return NewSemaphore()
}
