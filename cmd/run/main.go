package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/engine-exec/engine"
	"github.com/wippyai/engine-exec/executor"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to a guest wasm module (default: in-process engine)")
		code        = flag.Int("code", engine.CodePing, "Request code to send")
		body        = flag.String("body", "", "Request body fields (KEY=VAL,KEY2=VAL2)")
		wait        = flag.Duration("wait", 2*time.Second, "How long to collect responses")
		debugLog    = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Print library version and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(executor.Version())
		return
	}

	if *debugLog {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		engine.SetLogger(logger)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *code, *body, *wait); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newEngine(wasmFile string) (engine.Engine, error) {
	if wasmFile == "" {
		return engine.NewInproc(nil), nil
	}
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return engine.NewWasm(data, nil)
}

// encodeRequest builds the [code, body] msgpack envelope from KEY=VAL pairs.
func encodeRequest(code int, bodyStr string) ([]byte, error) {
	body := make(map[string]any)
	if bodyStr != "" {
		for _, kv := range strings.Split(bodyStr, ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("malformed body field %q (want KEY=VAL)", kv)
			}
			body[parts[0]] = parts[1]
		}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(2); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(int64(code)); err != nil {
		return nil, err
	}
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeResponse(payload []byte) (int, map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return 0, nil, err
	}
	if n != 2 {
		return 0, nil, fmt.Errorf("want [code, body] array of 2, got %d elements", n)
	}
	code, err := dec.DecodeInt()
	if err != nil {
		return 0, nil, err
	}
	body, err := dec.DecodeMap()
	if err != nil {
		return 0, nil, err
	}
	return code, body, nil
}

func run(wasmFile string, code int, bodyStr string, wait time.Duration) error {
	ctx := context.Background()

	eng, err := newEngine(wasmFile)
	if err != nil {
		return err
	}

	responses := make(chan []byte, 16)
	exec, err := executor.New(ctx, eng, func(payload []byte, userData any) {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		responses <- buf
	}, nil)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	defer exec.Close(ctx)

	fmt.Printf("Engine: %s\n", exec.Version())

	payload, err := encodeRequest(code, bodyStr)
	if err != nil {
		return err
	}
	if err := exec.Send(ctx, payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Printf("Sent request 0x%x (%d bytes)\n", code, len(payload))

	deadline := time.After(wait)
	for {
		select {
		case resp := <-responses:
			code, body, err := decodeResponse(resp)
			if err != nil {
				fmt.Printf("Response (%d bytes, undecodable): %x\n", len(resp), resp)
				continue
			}
			fmt.Printf("Response 0x%x: %v\n", code, body)
		case <-deadline:
			return nil
		}
	}
}
