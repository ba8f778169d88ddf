package executor

import (
	"context"
	"sync"

	engineexec "github.com/wippyai/engine-exec"
	"github.com/wippyai/engine-exec/engine"
	"github.com/wippyai/engine-exec/errors"
)

// Registry owns at most one live executor. The default registry gives the
// process-wide single-engine behavior; tests construct their own for
// isolation.
//
// The registry's own mutex is distinct from the per-executor lock: the
// executor lock does not exist yet while create is reserving the slot, and
// is already destroyed by the time destroy releases it.
type Registry struct {
	mu       sync.Mutex
	live     *Executor
	reserved bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// New creates an executor in the process-wide default registry.
func New(ctx context.Context, eng engine.Engine, handler engineexec.Handler, userData any, opts ...Option) (*Executor, error) {
	return defaultRegistry.New(ctx, eng, handler, userData, opts...)
}

// Version reports the build-time library version. It needs no live
// executor; a live handle's Version method reports the engine's own
// string instead.
func Version() string {
	return engineexec.Version
}

// New creates the registry's one live executor: it reserves the singleton
// slot, initializes the exclusive lock, boots an engine instance,
// registers the response handler, and starts the server loop and the
// response dispatcher. Every failure path unwinds whatever had been
// allocated and leaves the slot free for a retry.
func (r *Registry) New(ctx context.Context, eng engine.Engine, handler engineexec.Handler, userData any, opts ...Option) (*Executor, error) {
	if eng == nil {
		return nil, errors.NullArgument(errors.PhaseCreate, "engine")
	}
	if handler == nil {
		return nil, errors.NullArgument(errors.PhaseCreate, "handler")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	// Reserve the slot before the slow boot so two concurrent creates
	// cannot both observe "not yet initialized".
	r.mu.Lock()
	if r.live != nil || r.reserved {
		r.mu.Unlock()
		return nil, errors.AlreadyInitialized()
	}
	r.reserved = true
	r.mu.Unlock()

	free := func() {
		r.mu.Lock()
		r.reserved = false
		r.mu.Unlock()
	}

	lk, err := o.newLock()
	if err != nil {
		free()
		return nil, errors.LockInit(err)
	}

	inst, err := eng.NewInstance(ctx)
	if err != nil {
		_ = lk.Close()
		free()
		return nil, errors.EngineInit(err)
	}

	e := &Executor{
		reg:       r,
		lk:        lk,
		inst:      inst,
		handler:   handler,
		userData:  userData,
		responses: make(chan []byte, o.queueSize),
	}

	e.dispatchWG.Add(1)
	go e.dispatch()

	// The engine owns the payload only for the duration of this callback;
	// crossing onto the dispatch queue therefore copies.
	inst.RegisterHandler(func(payload []byte, _ any) {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		e.responses <- buf
	}, nil)

	if err := inst.StartServer(ctx); err != nil {
		_ = inst.StopServer(ctx)
		_ = inst.Close(ctx)
		close(e.responses)
		e.dispatchWG.Wait()
		_ = lk.Close()
		free()
		return nil, errors.EngineInit(err)
	}

	r.mu.Lock()
	r.live = e
	r.reserved = false
	r.mu.Unlock()
	return e, nil
}

// release clears the slot after an executor's teardown.
func (r *Registry) release(e *Executor) {
	r.mu.Lock()
	if r.live == e {
		r.live = nil
	}
	r.mu.Unlock()
}
