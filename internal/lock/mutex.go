package lock

import "sync"

// mutex realizes Lock over sync.Mutex. A second small mutex guards the
// held/closed flags so misuse is reported instead of panicking.
type mutex struct {
	mu     sync.Mutex
	state  sync.Mutex
	held   bool
	closed bool
}

// NewMutex returns a sync.Mutex-backed realization.
func NewMutex() Lock {
	return &mutex{}
}

func (m *mutex) Acquire() error {
	m.state.Lock()
	if m.closed {
		m.state.Unlock()
		return ErrClosed
	}
	m.state.Unlock()

	m.mu.Lock()

	// Close may have won the race while we were blocked; it unlocks mu
	// precisely so blocked acquirers reach this check.
	m.state.Lock()
	if m.closed {
		m.state.Unlock()
		m.mu.Unlock()
		return ErrClosed
	}
	m.held = true
	m.state.Unlock()
	return nil
}

func (m *mutex) TryAcquire() (bool, error) {
	m.state.Lock()
	defer m.state.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	if m.mu.TryLock() {
		m.held = true
		return true, nil
	}
	return false, nil
}

func (m *mutex) Release() error {
	m.state.Lock()
	defer m.state.Unlock()
	if m.closed {
		return ErrClosed
	}
	if !m.held {
		return ErrNotHeld
	}
	m.held = false
	m.mu.Unlock()
	return nil
}

func (m *mutex) Close() error {
	m.state.Lock()
	defer m.state.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	if m.held {
		m.held = false
		m.mu.Unlock()
	}
	return nil
}
