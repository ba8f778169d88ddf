package engineexec

// Version is the build-time library version. It is what the version query
// reports when no live engine instance is available to ask; a live instance
// may report a richer engine-supplied string.
//
// Overridable at link time:
//
//	go build -ldflags "-X github.com/wippyai/engine-exec.Version=v1.2.3"
var Version = "v0.3.0-dev"

// Handler receives asynchronous engine responses.
//
// The engine invokes it from its own delivery goroutine, with no executor
// lock held. The payload is valid only for the duration of the call; copy
// any bytes that must outlive it. userData is the value registered at
// create time, passed back verbatim.
//
// A handler that calls back into Send on the same executor is permitted
// (no lock is held here), but it must not block forever: delivery is FIFO
// on a single goroutine, so a stuck handler stalls all later responses.
// Calling Close from a handler deadlocks, since Close waits for the
// delivery goroutine to drain.
type Handler func(payload []byte, userData any)
