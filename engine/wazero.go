package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	engineexec "github.com/wippyai/engine-exec"
)

// Guest ABI. The guest module exports:
//
//	memory
//	alloc(size: i32) -> i32                 scratch buffer for inbound bytes
//	on_message(ptr: i32, len: i32) -> i64   0 = accepted, else packed ptr/len
//	                                        of error text in guest memory
//	start() / stop()                        optional server loop hooks
//	version() -> i64                        optional, packed ptr/len
//
// and imports engine.emit(ptr: i32, len: i32) to deliver responses.
const (
	hostModule   = "engine"
	fnEmit       = "emit"
	fnAlloc      = "alloc"
	fnOnMessage  = "on_message"
	fnStart      = "start"
	fnStop       = "stop"
	fnVersion    = "version"
	wasmFallback = "wasm-guest"
)

// WasmConfig holds configuration for the wazero-backed engine
type WasmConfig struct {
	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Wasm is an Engine realization that hosts the runtime as a WebAssembly
// guest under wazero. Each instance owns its own wazero runtime, so
// closing an instance reclaims everything.
type Wasm struct {
	guest []byte
	cfg   WasmConfig
}

// NewWasm creates a wasm engine from a guest module binary implementing
// the guest ABI above. cfg may be nil for defaults.
func NewWasm(guest []byte, cfg *WasmConfig) (*Wasm, error) {
	if len(guest) == 0 {
		return nil, fmt.Errorf("wasm: empty guest module")
	}
	e := &Wasm{guest: guest}
	if cfg != nil {
		e.cfg = *cfg
	}
	return e, nil
}

func (e *Wasm) NewInstance(ctx context.Context) (Instance, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if e.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	inst := &wasmInstance{runtime: r}

	// Host side of the channel: the guest calls engine.emit to deliver a
	// response. Bytes are copied out of guest memory before the handler
	// sees them.
	_, err := r.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				debugf("wasm: emit out of range: ptr=%d len=%d", ptr, length)
				return
			}
			out := make([]byte, len(buf))
			copy(out, buf)
			inst.deliver(out)
		}).
		Export(fnEmit).
		Instantiate(ctx)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wasm: instantiate host module: %w", err)
	}

	mod, err := r.InstantiateWithConfig(ctx, e.guest,
		wazero.NewModuleConfig().WithName("guest").WithStartFunctions())
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wasm: instantiate guest: %w", err)
	}

	alloc := mod.ExportedFunction(fnAlloc)
	onMessage := mod.ExportedFunction(fnOnMessage)
	if alloc == nil || onMessage == nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wasm: guest must export %q and %q", fnAlloc, fnOnMessage)
	}

	// Signatures are checked here so a nonconforming guest fails at boot
	// instead of faulting the host on the first call.
	if err := checkSignature(fnAlloc, alloc,
		[]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	if err := checkSignature(fnOnMessage, onMessage,
		[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64}); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}

	inst.module = mod
	inst.alloc = alloc
	inst.onMessage = onMessage
	return inst, nil
}

// checkSignature verifies a guest export against the ABI it must implement.
func checkSignature(name string, fn api.Function, params, results []api.ValueType) error {
	def := fn.Definition()
	if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), results) {
		return fmt.Errorf("wasm: guest export %q has signature %v -> %v, want %v -> %v",
			name, def.ParamTypes(), def.ResultTypes(), params, results)
	}
	return nil
}

type wasmInstance struct {
	runtime   wazero.Runtime
	module    api.Module
	alloc     api.Function
	onMessage api.Function

	mu       sync.Mutex
	handler  engineexec.Handler
	userData any
	closed   bool
}

func (i *wasmInstance) deliver(payload []byte) {
	i.mu.Lock()
	h, ud := i.handler, i.userData
	i.mu.Unlock()
	if h != nil {
		h(payload, ud)
	}
}

func (i *wasmInstance) RegisterHandler(h engineexec.Handler, userData any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handler = h
	i.userData = userData
}

func (i *wasmInstance) StartServer(ctx context.Context) error {
	if i.isClosed() {
		return fmt.Errorf("wasm: instance closed")
	}
	if fn := i.module.ExportedFunction(fnStart); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			return fmt.Errorf("wasm: start: %w", err)
		}
	}
	return nil
}

func (i *wasmInstance) Send(ctx context.Context, payload []byte) error {
	if i.isClosed() {
		return fmt.Errorf("wasm: instance closed")
	}

	var ptr uint32
	if len(payload) > 0 {
		results, err := i.alloc.Call(ctx, uint64(len(payload)))
		if err != nil {
			return fmt.Errorf("wasm: alloc: %w", err)
		}
		ptr = uint32(results[0])
		if !i.module.Memory().Write(ptr, payload) {
			return fmt.Errorf("wasm: write payload at %d out of range", ptr)
		}
	}

	results, err := i.onMessage.Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return fmt.Errorf("wasm: on_message: %w", err)
	}
	if packed := results[0]; packed != 0 {
		return &ProtocolError{Detail: i.readPacked(packed)}
	}
	return nil
}

// readPacked resolves a (ptr<<32 | len) guest string reference.
func (i *wasmInstance) readPacked(packed uint64) string {
	ptr := uint32(packed >> 32)
	length := uint32(packed)
	buf, ok := i.module.Memory().Read(ptr, length)
	if !ok {
		return fmt.Sprintf("guest error text out of range (ptr=%d len=%d)", ptr, length)
	}
	return string(buf)
}

func (i *wasmInstance) StopServer(ctx context.Context) error {
	if i.isClosed() {
		return nil
	}
	if fn := i.module.ExportedFunction(fnStop); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			return fmt.Errorf("wasm: stop: %w", err)
		}
	}
	return nil
}

func (i *wasmInstance) Close(ctx context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.handler = nil
	i.userData = nil
	i.mu.Unlock()

	return i.runtime.Close(ctx)
}

func (i *wasmInstance) Version() string {
	if i.isClosed() {
		return wasmFallback
	}
	fn := i.module.ExportedFunction(fnVersion)
	if fn == nil {
		return wasmFallback
	}
	results, err := fn.Call(context.Background())
	if err != nil || len(results) == 0 || results[0] == 0 {
		return wasmFallback
	}
	return i.readPacked(results[0])
}

func (i *wasmInstance) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}
