package engine

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	engineexec "github.com/wippyai/engine-exec"
)

// Message codes understood by the in-process engine. Requests are msgpack
// arrays [code, body]; each response reuses the request code + 1.
const (
	CodePing    = 0x10
	CodePong    = 0x11
	CodeEcho    = 0x20
	CodeEchoed  = 0x21
	CodeVersion = 0x30
	CodeVersed  = 0x31
)

const inprocVersion = "inproc/msgpack-1"

// defaultQueueSize bounds how many decoded requests may sit between Send
// and the server loop.
const defaultQueueSize = 16

// InprocConfig holds configuration for the in-process engine
type InprocConfig struct {
	// QueueSize is the request queue capacity. 0 means default (16).
	QueueSize int

	// Version overrides the string reported by Instance.Version.
	Version string
}

// Inproc is an in-process Engine whose server loop runs on its own
// goroutine and speaks a small msgpack request/response protocol. It
// exists so the executor layer is exercisable without an external
// runtime; it is also the reference for the ordering guarantees engines
// must provide (FIFO delivery, no responses after StopServer).
type Inproc struct {
	cfg InprocConfig
}

// NewInproc creates an in-process engine. cfg may be nil for defaults.
func NewInproc(cfg *InprocConfig) *Inproc {
	e := &Inproc{}
	if cfg != nil {
		e.cfg = *cfg
	}
	if e.cfg.QueueSize <= 0 {
		e.cfg.QueueSize = defaultQueueSize
	}
	if e.cfg.Version == "" {
		e.cfg.Version = inprocVersion
	}
	return e
}

func (e *Inproc) NewInstance(ctx context.Context) (Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &inprocInstance{cfg: e.cfg}, nil
}

type request struct {
	body map[string]any
	code int
}

type inprocInstance struct {
	cfg      InprocConfig
	handler  engineexec.Handler
	userData any
	requests chan request
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
}

func (i *inprocInstance) RegisterHandler(h engineexec.Handler, userData any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handler = h
	i.userData = userData
}

func (i *inprocInstance) StartServer(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return fmt.Errorf("inproc: instance closed")
	}
	if i.started {
		return fmt.Errorf("inproc: server already started")
	}
	i.requests = make(chan request, i.cfg.QueueSize)
	i.started = true
	i.wg.Add(1)
	go i.serve()
	debugf("inproc: server started")
	return nil
}

// serve is the engine's own execution context. Responses are produced and
// delivered here, one at a time, in request order.
func (i *inprocInstance) serve() {
	defer i.wg.Done()
	for req := range i.requests {
		payload, err := i.respond(req)
		if err != nil {
			Logger().Warn("inproc: drop request", zap.Int("code", req.code), zap.Error(err))
			continue
		}
		i.mu.Lock()
		h, ud := i.handler, i.userData
		i.mu.Unlock()
		if h != nil {
			h(payload, ud)
		}
	}
}

func (i *inprocInstance) respond(req request) ([]byte, error) {
	var body map[string]any
	switch req.code {
	case CodePing, CodeEcho:
		body = req.body
	case CodeVersion:
		body = map[string]any{"version": i.cfg.Version}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(2); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(int64(req.code + 1)); err != nil {
		return nil, err
	}
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (i *inprocInstance) Send(ctx context.Context, payload []byte) error {
	i.mu.Lock()
	if !i.started || i.stopped || i.closed {
		i.mu.Unlock()
		return fmt.Errorf("inproc: server not running")
	}
	requests := i.requests
	i.mu.Unlock()

	debugf("inproc: got message, %d bytes", len(payload))

	// Framing is validated synchronously so the caller sees the rejection;
	// the response itself is produced later on the server goroutine.
	req, err := decodeEnvelope(payload)
	if err != nil {
		return &ProtocolError{Detail: fmt.Sprintf("invalid encoding: %v", err)}
	}

	select {
	case requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decodeEnvelope(payload []byte) (request, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return request{}, err
	}
	if n != 2 {
		return request{}, fmt.Errorf("want [code, body] array of 2, got %d elements", n)
	}

	code, err := dec.DecodeInt()
	if err != nil {
		return request{}, fmt.Errorf("decode code: %w", err)
	}
	switch code {
	case CodePing, CodeEcho, CodeVersion:
	default:
		return request{}, fmt.Errorf("unsupported request code 0x%x", code)
	}

	body, err := dec.DecodeMap()
	if err != nil {
		return request{}, fmt.Errorf("decode body: %w", err)
	}

	return request{code: code, body: body}, nil
}

func (i *inprocInstance) StopServer(ctx context.Context) error {
	i.mu.Lock()
	if !i.started || i.stopped {
		i.mu.Unlock()
		return nil
	}
	i.stopped = true
	requests := i.requests
	i.mu.Unlock()

	close(requests)
	i.wg.Wait()
	debugf("inproc: server stopped")
	return nil
}

func (i *inprocInstance) Close(ctx context.Context) error {
	if err := i.StopServer(ctx); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	i.handler = nil
	i.userData = nil
	return nil
}

func (i *inprocInstance) Version() string {
	return i.cfg.Version
}
