// Command ironlake-lambda is the single-invocation entrypoint: it reads one
// operation envelope (wrapped in either wire shape internal/transport
// recognizes), dispatches it through a freshly-wired lakehouse Engine, and
// writes the rendered response to stdout. It mirrors the API-gateway and
// function-URL invocation shapes cmd/ironlaked's HTTP server accepts,
// without the always-on listener — the container/serverless runtime that
// invokes this binary supplies one request per process lifetime via stdin.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rivermark/ironlake/internal/bootstrap"
	"github.com/rivermark/ironlake/internal/config"
	"github.com/rivermark/ironlake/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	configPath := os.Getenv("IRONLAKE_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadFromEnvironment(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stack, err := bootstrap.New(ctx, cfg, "ironlake-lambda")
	if err != nil {
		return err
	}
	defer stack.Close()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stack.Providers.Shutdown(shutdownCtx)
	}()

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read invocation payload: %w", err)
	}

	started := time.Now()
	wireReq, err := transport.Parse(raw)
	if err != nil {
		wireReq = &transport.Request{Body: raw}
	}
	env, err := wireReq.Envelope()
	if err != nil {
		return writeResponse(transport.FromError("", err, time.Since(started).Milliseconds()))
	}

	resp, err := stack.Engine.Dispatch(ctx, env)
	if err != nil {
		return writeResponse(transport.FromError(env.RequestID, err, time.Since(started).Milliseconds()))
	}
	return writeResponse(transport.FromOpResponse(env.RequestID, resp, time.Since(started).Milliseconds()))
}

func writeResponse(resp *transport.Response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", encoded)
	return err
}
