// Package errors provides structured error types for the engine-exec library.
//
// Errors are categorized by Phase (which lifecycle operation failed) and
// Kind (error category). Every recoverable failure in the library is an
// explicit *Error return; nothing panics except exclusion-invariant
// corruption (a lock that cannot be released), which has no recoverable
// continuation.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSend, errors.KindProtocol).
//		Detail("invalid encoding: %s", engineText).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NullArgument(errors.PhaseSend, "payload")
//	err := errors.EngineInit(cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, so sentinel comparisons work:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseCreate, Kind: errors.KindAlreadyInitialized}) {
//	    ...
//	}
package errors
