// Package engineexec provides exclusive, serialized access to a single
// embedded message-driven engine.
//
// The engine is an external collaborator: an independently-initialized
// runtime consumed only through a small lifecycle surface (create instance,
// register response handler, start server, send message, stop server,
// close, query version). Payload bytes exchanged with it are opaque; this
// library guarantees lifecycle and exclusion, not message semantics.
//
// # Architecture Overview
//
//	engineexec/          Root package with the Handler type and Version
//	├── executor/        Exclusive-access executor handle and registry
//	├── engine/          Engine abstraction plus the in-process and wazero
//	│                    backed realizations
//	├── errors/          Structured error types
//	└── cmd/run/         CLI for driving an engine interactively
//
// # Quick Start
//
//	ctx := context.Background()
//	eng := engine.NewInproc(nil)
//
//	exec, err := executor.New(ctx, eng, func(payload []byte, userData any) {
//	    fmt.Printf("response: %x\n", payload)
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close(ctx)
//
//	if err := exec.Send(ctx, msg); err != nil {
//	    log.Fatal(err)
//	}
//
// # Exclusion Model
//
// At most one executor is live per registry (and the default registry is
// process-wide). All operations on one executor are mutually exclusive: a
// Send in progress blocks a concurrent Send or Close on the same handle
// until it completes. Response delivery runs outside that lock, on a
// dedicated dispatch goroutine, in FIFO order.
//
// # Blocking
//
// New, Send, and Close block while the engine boots, processes, or shuts
// down. No timeout is imposed here; callers needing bounded latency impose
// it externally via the context passed to the engine.
package engineexec
