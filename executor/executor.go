package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	engineexec "github.com/wippyai/engine-exec"
	"github.com/wippyai/engine-exec/engine"
	"github.com/wippyai/engine-exec/errors"
	"github.com/wippyai/engine-exec/internal/lock"
)

// Executor is the exclusive-access handle binding one live engine
// instance to one exclusive lock. All methods are safe for concurrent use
// and strictly serialized against each other; response delivery runs on a
// separate dispatch goroutine with no lock held.
type Executor struct {
	reg        *Registry
	lk         lock.Lock
	inst       engine.Instance // nil once closed; guarded by lk
	handler    engineexec.Handler
	userData   any
	responses  chan []byte
	dispatchWG sync.WaitGroup
}

// Option configures executor construction.
type Option func(*options)

type options struct {
	newLock   func() (lock.Lock, error)
	queueSize int
}

func defaultOptions() options {
	return options{
		newLock:   func() (lock.Lock, error) { return lock.New(), nil },
		queueSize: 64,
	}
}

// WithMutexLock selects the sync.Mutex lock realization instead of the
// default channel semaphore. The two are behaviorally interchangeable.
func WithMutexLock() Option {
	return func(o *options) {
		o.newLock = func() (lock.Lock, error) { return lock.NewMutex(), nil }
	}
}

// WithDispatchBuffer sets the response queue capacity. When the queue is
// full, engine-side delivery blocks until the handler catches up.
func WithDispatchBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// withLockFactory injects a lock constructor. Test hook.
func withLockFactory(f func() (lock.Lock, error)) Option {
	return func(o *options) {
		o.newLock = f
	}
}

// dispatch drains the response queue and invokes the registered handler
// outside any executor lock, preserving engine delivery order.
func (e *Executor) dispatch() {
	defer e.dispatchWG.Done()
	for payload := range e.responses {
		e.handler(payload, e.userData)
	}
}

// Send forwards one opaque payload to the engine under the exclusive
// lock. Concurrent Sends against the same executor never overlap inside
// the engine. A zero-length payload is forwarded unchanged; only a nil
// payload is rejected here.
//
// A payload the engine rejects comes back as kind protocol with the
// engine's diagnostic text. Context cancellation inside the engine is
// returned as-is.
func (e *Executor) Send(ctx context.Context, payload []byte) error {
	if e == nil {
		return errors.NullArgument(errors.PhaseSend, "executor")
	}
	if payload == nil {
		return errors.NullArgument(errors.PhaseSend, "payload")
	}

	if err := e.lk.Acquire(); err != nil {
		if stderrors.Is(err, lock.ErrClosed) {
			return errors.Closed(errors.PhaseSend)
		}
		return errors.LockAcquire(errors.PhaseSend, err)
	}

	inst := e.inst
	if inst == nil {
		e.release()
		return errors.Closed(errors.PhaseSend)
	}

	err := inst.Send(ctx, payload)
	e.release()

	if err != nil {
		var perr *engine.ProtocolError
		if stderrors.As(err, &perr) {
			return errors.Protocol(perr.Detail, nil)
		}
		return err
	}
	return nil
}

// Close stops the engine's server loop, tears the instance down, drains
// the response dispatcher, destroys the lock, and frees the registry
// slot. After Close returns, the handler is never invoked again and a
// subsequent create may succeed.
//
// Teardown always runs to completion; an engine-reported stop or close
// failure is returned after the handle is already dead.
func (e *Executor) Close(ctx context.Context) error {
	if e == nil {
		return errors.NullArgument(errors.PhaseShutdown, "executor")
	}

	if err := e.lk.Acquire(); err != nil {
		if stderrors.Is(err, lock.ErrClosed) {
			return errors.Closed(errors.PhaseShutdown)
		}
		return errors.LockAcquire(errors.PhaseShutdown, err)
	}

	inst := e.inst
	if inst == nil {
		e.release()
		return errors.Closed(errors.PhaseShutdown)
	}

	stopErr := inst.StopServer(ctx)
	closeErr := inst.Close(ctx)
	e.inst = nil

	// Still holding the lock: Close releases and destroys it atomically,
	// so a concurrent Send cannot enter the critical section between the
	// two. Blocked Sends wake with a closed error.
	if err := e.lk.Close(); err != nil {
		// The exclusion invariant is unrecoverable past this point.
		panic(fmt.Sprintf("executor: destroy exclusive lock: %v", err))
	}

	// The engine has confirmed shutdown: nothing can enqueue anymore.
	// Drain what was already delivered, then retire the queue.
	close(e.responses)
	e.dispatchWG.Wait()

	e.reg.release(e)
	return stderrors.Join(stopErr, closeErr)
}

// Version reports the live engine's version string, or the build-time
// library version once the executor is closed. Never empty.
func (e *Executor) Version() string {
	if e == nil {
		return engineexec.Version
	}
	if err := e.lk.Acquire(); err != nil {
		return engineexec.Version
	}
	inst := e.inst
	e.release()
	if inst == nil {
		return engineexec.Version
	}
	return inst.Version()
}

// release exits the critical section. A lock that cannot be released
// leaves a permanently stuck critical section, so this never returns an
// error to the caller.
func (e *Executor) release() {
	if err := e.lk.Release(); err != nil {
		panic(fmt.Sprintf("executor: release exclusive lock: %v", err))
	}
}
