package lock

import "sync"

// semaphore realizes Lock as a one-token channel semaphore. The token
// lives in slot while the lock is free; Acquire takes it, Release puts
// it back. Close closes done, which outranks the token everywhere.
type semaphore struct {
	slot      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSemaphore returns a channel-semaphore realization.
func NewSemaphore() Lock {
	s := &semaphore{
		slot: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.slot <- struct{}{}
	return s
}

func (s *semaphore) Acquire() error {
	select {
	case <-s.slot:
		// Close may have raced us to the token.
		select {
		case <-s.done:
			return ErrClosed
		default:
			return nil
		}
	case <-s.done:
		return ErrClosed
	}
}

func (s *semaphore) TryAcquire() (bool, error) {
	select {
	case <-s.done:
		return false, ErrClosed
	default:
	}
	select {
	case <-s.slot:
		select {
		case <-s.done:
			return false, ErrClosed
		default:
			return true, nil
		}
	default:
		return false, nil
	}
}

func (s *semaphore) Release() error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.slot <- struct{}{}:
		return nil
	default:
		// token already present: nobody held the lock
		return ErrNotHeld
	}
}

func (s *semaphore) Close() error {
	closed := false
	s.closeOnce.Do(func() {
		close(s.done)
		closed = true
	})
	if !closed {
		return ErrClosed
	}
	return nil
}
