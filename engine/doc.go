// Package engine defines the boundary to the embedded runtime and ships
// two realizations of it.
//
// The boundary is deliberately narrow: an Engine boots Instances, and an
// Instance exposes exactly the runtime's lifecycle primitives (register
// handler, start server, send, stop server, close, version). Payloads are
// opaque byte buffers; an instance that cannot decode one reports a
// *ProtocolError carrying its own diagnostic text. Everything above this
// boundary (exclusion, singleton policy, queued response dispatch) lives
// in the executor package.
//
// # Realizations
//
//	Inproc  - server loop on a goroutine, msgpack [code, body] protocol.
//	          The reference engine; used by tests and the CLI default.
//	Wasm    - the runtime is a WebAssembly guest hosted under wazero,
//	          driven through a small alloc/on_message/emit ABI.
//
// # Calling Convention
//
// Instances assume the caller serializes all lifecycle and Send calls;
// they do not lock against overlapping use. Response handlers run on the
// engine's own delivery context (the Inproc server goroutine; the Send
// call path for Wasm, since guest emit is synchronous), so a handler must
// not assume any particular caller goroutine.
//
// # Logging
//
// The package logger defaults to a no-op zap logger; wire a real one with
// SetLogger before creating engines.
package engine
