package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/engine-exec/engine"
	"github.com/wippyai/engine-exec/errors"
)

// End-to-end: executor over the real in-process engine.

func pingPayload(t *testing.T, seq string) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(2); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.EncodeInt(engine.CodePing); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Encode(map[string]any{"seq": seq}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestE2E_CreateSendDestroyRecreate(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	responses := make(chan []byte, 16)
	handler := func(payload []byte, userData any) {
		responses <- payload
	}

	// create -> send -> response -> destroy
	exec, err := reg.New(ctx, engine.NewInproc(nil), handler, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := exec.Send(ctx, pingPayload(t, "hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case payload := <-responses:
		dec := msgpack.NewDecoder(bytes.NewReader(payload))
		if n, err := dec.DecodeArrayLen(); err != nil || n != 2 {
			t.Fatalf("response framing: n=%d err=%v", n, err)
		}
		code, err := dec.DecodeInt()
		if err != nil || code != engine.CodePong {
			t.Fatalf("response code = 0x%x err=%v, want pong", code, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pong")
	}

	if got := exec.Version(); got == "" {
		t.Fatal("live version is empty")
	}

	if err := exec.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	// guard was cleared: a second lifecycle works
	exec2, err := reg.New(ctx, engine.NewInproc(nil), handler, nil)
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if err := exec2.Close(ctx); err != nil {
		t.Fatalf("close recreated: %v", err)
	}
}

func TestE2E_EngineRejectionSurfacesText(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	exec, err := reg.New(ctx, engine.NewInproc(nil), discard, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer exec.Close(ctx)

	err = exec.Send(ctx, []byte{0xc1})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseSend, Kind: errors.KindProtocol}) {
		t.Fatalf("send garbage = %v, want protocol", err)
	}
	var serr *errors.Error
	if !stderrors.As(err, &serr) || serr.Detail == "" {
		t.Fatalf("engine diagnostic text missing: %v", err)
	}

	// The handle survives the rejection.
	if err := exec.Send(ctx, pingPayload(t, "still-alive")); err != nil {
		t.Fatalf("send after rejection: %v", err)
	}
}

func TestE2E_NoDeliveryAfterClose(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	var afterClose bool
	closed := make(chan struct{})
	handler := func(payload []byte, userData any) {
		select {
		case <-closed:
			afterClose = true
		default:
		}
	}

	exec, err := reg.New(ctx, engine.NewInproc(nil), handler, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := exec.Send(ctx, pingPayload(t, "x")); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	if err := exec.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(closed)

	// Close drained the dispatcher before returning; nothing may arrive
	// once it has.
	time.Sleep(50 * time.Millisecond)
	if afterClose {
		t.Fatal("handler invoked after Close returned")
	}
}
