// Command ironlaked is the long-running lakehouse server: it loads
// configuration, wires the catalog/engine/compactor/storage stack, and
// serves operation envelopes over HTTP until signaled to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rivermark/ironlake/internal/bootstrap"
	"github.com/rivermark/ironlake/internal/config"
	"github.com/rivermark/ironlake/internal/lakehouse"
	"github.com/rivermark/ironlake/internal/transport"
)

var (
	// Version is set at build time via -ldflags.
	Version = "dev"
	Build   = "unknown"
)

var (
	configPath string
	addr       string
)

var rootCmd = &cobra.Command{
	Use:   "ironlaked",
	Short: "ironlaked - multi-tenant lakehouse operation server",
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.json", "path to the environment-sectioned config document")
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	rootCmd.Flags().BoolP("version", "V", false, "print version information")
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("ironlaked version %s (%s)\n", Version, Build)
			return nil
		}
		return runServer(cmd, args)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadFromEnvironment(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	transport.ServiceVersion = Version
	stack, err := bootstrap.New(ctx, cfg, "ironlaked")
	if err != nil {
		return err
	}
	defer stack.Close()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = stack.Providers.Shutdown(shutdownCtx)
	}()
	logger := stack.Providers.Logger

	srv := transport.NewServer(addr, func(dispatchCtx context.Context, body []byte) (*transport.Response, error) {
		return dispatchEnvelope(dispatchCtx, stack.Engine, body)
	}, logger)

	compCfg := cfg.Compaction()
	if compCfg.Enabled {
		go runCompactionWatchdog(ctx, compCfg.OpportunisticCheckInterval, logger)
	}

	logger.Info("starting ironlaked", "addr", addr, "environment", cfg.Environment)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("ironlaked stopped")
	return nil
}

// dispatchEnvelope decodes a raw operation envelope, dispatches it through
// the lakehouse engine, and renders the uniform wire response.
func dispatchEnvelope(ctx context.Context, eng *lakehouse.Engine, body []byte) (*transport.Response, error) {
	started := time.Now()
	req, err := transport.Parse(body)
	if err != nil {
		// Tolerate a bare envelope body (no gateway/function-URL wrapper)
		// by treating the raw bytes as the envelope directly.
		req = &transport.Request{Body: body}
	}
	env, err := req.Envelope()
	if err != nil {
		return transport.FromError("", err, time.Since(started).Milliseconds()), nil
	}

	resp, dispatchErr := eng.Dispatch(ctx, env)
	if dispatchErr != nil {
		return transport.FromError(env.RequestID, dispatchErr, time.Since(started).Milliseconds()), nil
	}
	return transport.FromOpResponse(env.RequestID, resp, time.Since(started).Milliseconds()), nil
}

// runCompactionWatchdog periodically logs that the opportunistic-compaction
// probe (wired into WRITE's handler) is configured and the process is
// alive, since a quiet table may go a long time between write-triggered
// probes.
func runCompactionWatchdog(ctx context.Context, intervalWrites int, logger interface{ Info(string, ...any) }) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("compaction watchdog", "opportunistic_check_interval", intervalWrites)
		}
	}
}
