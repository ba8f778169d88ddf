package engine

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func encodeEnvelope(t *testing.T, code int, body map[string]any) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(2); err != nil {
		t.Fatalf("encode array len: %v", err)
	}
	if err := enc.EncodeInt(int64(code)); err != nil {
		t.Fatalf("encode code: %v", err)
	}
	if err := enc.Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return buf.Bytes()
}

func decodeResponse(t *testing.T, payload []byte) (int, map[string]any) {
	t.Helper()
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	n, err := dec.DecodeArrayLen()
	if err != nil || n != 2 {
		t.Fatalf("response framing: n=%d err=%v", n, err)
	}
	code, err := dec.DecodeInt()
	if err != nil {
		t.Fatalf("decode code: %v", err)
	}
	body, err := dec.DecodeMap()
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return code, body
}

// startedInstance boots an instance with a buffered response collector.
func startedInstance(t *testing.T) (Instance, <-chan []byte) {
	t.Helper()
	ctx := context.Background()

	eng := NewInproc(nil)
	inst, err := eng.NewInstance(ctx)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}

	responses := make(chan []byte, 16)
	inst.RegisterHandler(func(payload []byte, userData any) {
		responses <- payload
	}, nil)

	if err := inst.StartServer(ctx); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = inst.Close(ctx)
	})
	return inst, responses
}

func waitResponse(t *testing.T, responses <-chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-responses:
		return payload
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")
		return nil
	}
}

func TestInproc_PingPong(t *testing.T) {
	inst, responses := startedInstance(t)
	ctx := context.Background()

	if err := inst.Send(ctx, encodeEnvelope(t, CodePing, map[string]any{"seq": "1"})); err != nil {
		t.Fatalf("send: %v", err)
	}

	code, body := decodeResponse(t, waitResponse(t, responses))
	if code != CodePong {
		t.Fatalf("response code = 0x%x, want 0x%x", code, CodePong)
	}
	if body["seq"] != "1" {
		t.Fatalf("response body = %v, want seq echoed", body)
	}
}

func TestInproc_VersionRequest(t *testing.T) {
	inst, responses := startedInstance(t)
	ctx := context.Background()

	if err := inst.Send(ctx, encodeEnvelope(t, CodeVersion, map[string]any{})); err != nil {
		t.Fatalf("send: %v", err)
	}

	code, body := decodeResponse(t, waitResponse(t, responses))
	if code != CodeVersed {
		t.Fatalf("response code = 0x%x, want 0x%x", code, CodeVersed)
	}
	if body["version"] != inst.Version() {
		t.Fatalf("version body = %v, want %q", body["version"], inst.Version())
	}
}

func TestInproc_FIFO(t *testing.T) {
	inst, responses := startedInstance(t)
	ctx := context.Background()

	const n = 20
	for seq := 0; seq < n; seq++ {
		payload := encodeEnvelope(t, CodeEcho, map[string]any{"seq": strconv.Itoa(seq)})
		if err := inst.Send(ctx, payload); err != nil {
			t.Fatalf("send %d: %v", seq, err)
		}
	}

	for seq := 0; seq < n; seq++ {
		_, body := decodeResponse(t, waitResponse(t, responses))
		got, ok := body["seq"].(string)
		if !ok {
			t.Fatalf("response %d: seq missing or mistyped: %v", seq, body)
		}
		if got != strconv.Itoa(seq) {
			t.Fatalf("response order broken: got seq %s at position %d", got, seq)
		}
	}
}

func TestInproc_MalformedPayload(t *testing.T) {
	inst, _ := startedInstance(t)
	ctx := context.Background()

	var perr *ProtocolError
	err := inst.Send(ctx, []byte{0xc1, 0xff, 0x00})
	if !errors.As(err, &perr) {
		t.Fatalf("send garbage = %v, want *ProtocolError", err)
	}
	if perr.Detail == "" {
		t.Fatal("protocol error carries no diagnostic text")
	}

	// Zero-length payloads are forwarded, and this engine rejects them.
	if err := inst.Send(ctx, []byte{}); !errors.As(err, &perr) {
		t.Fatalf("send empty = %v, want *ProtocolError", err)
	}
}

func TestInproc_UnknownCode(t *testing.T) {
	inst, _ := startedInstance(t)
	ctx := context.Background()

	var perr *ProtocolError
	err := inst.Send(ctx, encodeEnvelope(t, 0x7f, map[string]any{}))
	if !errors.As(err, &perr) {
		t.Fatalf("send unknown code = %v, want *ProtocolError", err)
	}
}

func TestInproc_SendBeforeStart(t *testing.T) {
	ctx := context.Background()
	inst, err := NewInproc(nil).NewInstance(ctx)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}

	if err := inst.Send(ctx, encodeEnvelope(t, CodePing, map[string]any{})); err == nil {
		t.Fatal("send before start succeeded")
	}
}

func TestInproc_NoDeliveryAfterClose(t *testing.T) {
	inst, responses := startedInstance(t)
	ctx := context.Background()

	if err := inst.Send(ctx, encodeEnvelope(t, CodePing, map[string]any{})); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitResponse(t, responses)

	if err := inst.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Close joins the server goroutine, so the queue must be fully drained.
	select {
	case payload := <-responses:
		t.Fatalf("response delivered after close: %x", payload)
	default:
	}

	if err := inst.Send(ctx, encodeEnvelope(t, CodePing, map[string]any{})); err == nil {
		t.Fatal("send after close succeeded")
	}
}

func TestInproc_ConfigVersion(t *testing.T) {
	ctx := context.Background()

	inst, err := NewInproc(&InprocConfig{Version: "test/42"}).NewInstance(ctx)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	if got := inst.Version(); got != "test/42" {
		t.Fatalf("version = %q, want override", got)
	}

	inst, err = NewInproc(nil).NewInstance(ctx)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	if got := inst.Version(); got == "" {
		t.Fatal("default version is empty")
	}
}
