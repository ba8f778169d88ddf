package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which lifecycle operation the error occurred in
type Phase string

const (
	PhaseCreate   Phase = "create"   // executor construction
	PhaseSend     Phase = "send"     // message forwarding
	PhaseShutdown Phase = "shutdown" // executor teardown
	PhaseVersion  Phase = "version"  // version query
)

// Kind categorizes the error
type Kind string

const (
	// KindNullArgument means a required argument was nil.
	KindNullArgument Kind = "null_argument"

	// KindAlreadyInitialized means a live executor already occupies the
	// registry slot.
	KindAlreadyInitialized Kind = "already_initialized"

	// KindLockInit means the executor's exclusive lock could not be created.
	KindLockInit Kind = "lock_init"

	// KindLockAcquire means the executor's exclusive lock could not be
	// entered.
	KindLockAcquire Kind = "lock_acquire"

	// KindEngineInit means the engine failed to produce a live instance.
	KindEngineInit Kind = "engine_init"

	// KindProtocol means the engine rejected or could not decode a
	// forwarded payload. Detail carries the engine-supplied text.
	KindProtocol Kind = "protocol"

	// KindClosed means the executor was used after Close.
	KindClosed Kind = "closed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NullArgument creates a missing-argument error
func NullArgument(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullArgument,
		Detail: fmt.Sprintf("required argument %q is nil", name),
	}
}

// AlreadyInitialized reports that a live executor already exists
func AlreadyInitialized() *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindAlreadyInitialized,
		Detail: "an executor is already live; close it before creating another",
	}
}

// LockInit creates a lock construction failure error
func LockInit(cause error) *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindLockInit,
		Detail: "initialize exclusive lock",
		Cause:  cause,
	}
}

// LockAcquire creates a lock entry failure error
func LockAcquire(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLockAcquire,
		Detail: "acquire exclusive lock",
		Cause:  cause,
	}
}

// EngineInit creates an engine boot failure error
func EngineInit(cause error) *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindEngineInit,
		Detail: "create engine instance",
		Cause:  cause,
	}
}

// Protocol creates an engine protocol rejection error. detail is the
// engine-supplied diagnostic text.
func Protocol(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseSend,
		Kind:   KindProtocol,
		Detail: detail,
		Cause:  cause,
	}
}

// Closed creates a use-after-close error
func Closed(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: "executor has been closed",
	}
}
