// Package executor provides the exclusive-access handle that guards an
// embedded engine's lifecycle.
//
// # Quick Start
//
//	ctx := context.Background()
//	eng := engine.NewInproc(nil)
//
//	exec, err := executor.New(ctx, eng, handleResponse, myState)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close(ctx)
//
//	if err := exec.Send(ctx, payload); err != nil {
//	    log.Fatal(err)
//	}
//
// # Singleton Policy
//
// A Registry owns at most one live executor at a time. New on a registry
// with a live executor fails with kind already_initialized and leaves the
// existing handle untouched; after a successful Close the slot is free
// again. The package-level New uses a process-wide default registry.
// Construct independent registries for tests that need isolation.
//
// # Exclusion
//
// Every operation holds the executor's lock for the span of its forward
// call into the engine: a Send in progress blocks a concurrent Send or
// Close on the same handle. The lock is not reentrant. Response handlers
// run with no lock held, on a dedicated dispatch goroutine, in delivery
// order; a handler may therefore call Send on its own executor. A handler
// must NOT call Close: Close waits for the dispatcher to drain, and the
// dispatcher is what runs the handler.
//
// # Responses After Close Is Requested
//
// A Close that begins after a Send released the lock does not wait for
// that send's response: responses already queued may still be delivered
// while Close runs, up until the engine confirms shutdown. Close returns
// only after the dispatcher has drained, so once it returns the handler
// is never invoked again.
//
// One consequence for callback-heavy callers: a handler blocked in Send
// while a Close holds the lock stalls delivery, and with a full response
// queue that stalls engine shutdown too. Size the dispatch buffer
// (WithDispatchBuffer) for the burstiest response traffic expected.
//
// # Failure Model
//
// All recoverable failures are *errors.Error values; see the errors
// package for the taxonomy. Failure to release or destroy an acquired
// lock panics, because a permanently stuck critical section has no sound
// continuation.
package executor
