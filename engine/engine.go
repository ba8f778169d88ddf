package engine

import (
	"context"

	engineexec "github.com/wippyai/engine-exec"
)

// Engine creates instances of an embedded runtime.
//
// An Engine is cheap, reusable state (configuration, compiled guest code);
// the expensive boot happens in NewInstance. How many instances may be live
// at once is the caller's concern, not the engine's: the executor layer
// enforces its single-instance policy on top of this interface.
type Engine interface {
	// NewInstance boots one live engine instance.
	NewInstance(ctx context.Context) (Instance, error)
}

// Instance is one live, independently-initialized engine runtime, driven
// through a byte-oriented message channel.
//
// Lifecycle: RegisterHandler, then StartServer, then any number of Sends,
// then StopServer, then Close. Implementations may assume callers follow
// that order and never overlap calls; serialization is the executor's job.
type Instance interface {
	// RegisterHandler installs the response callback and its user data.
	// Must be called before StartServer.
	RegisterHandler(h engineexec.Handler, userData any)

	// StartServer begins the engine's server loop.
	StartServer(ctx context.Context) error

	// Send forwards one opaque message to the engine. A rejected or
	// undecodable payload is reported as *ProtocolError carrying the
	// engine's diagnostic text.
	Send(ctx context.Context, payload []byte) error

	// StopServer ends the server loop. After StopServer returns, the
	// engine produces no further responses.
	StopServer(ctx context.Context) error

	// Close tears the instance down. StopServer must have run first.
	Close(ctx context.Context) error

	// Version reports the engine's own version string. Never empty.
	Version() string
}

// ProtocolError is the engine's rejection of a forwarded payload.
// Detail is engine-supplied diagnostic text.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return e.Detail
}
