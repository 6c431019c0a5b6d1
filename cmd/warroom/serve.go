package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/warroom/internal/api"
	"github.com/kingrea/warroom/internal/synthesis"
)

const shutdownTimeout = 5 * time.Second

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "bind port (overrides config)")
}

// serveCmd runs the synthesis HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /synthesize over HTTP",
	Long: `Serve the decision synthesis API until interrupted.

Endpoints:
  POST /synthesize   {directiveText, history} -> {summary} | {error}
  GET  /health       status, version and uptime
  GET  /metrics      Prometheus exposition

Examples:
  # Serve on the configured address
  ANTHROPIC_API_KEY=... warroom serve

  # Bind all interfaces on a different port
  warroom serve --host 0.0.0.0 --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(true)
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.log.Zap()

	settings := api.SettingsFromConfig(rt.cfg)
	if cmd.Flags().Changed("host") {
		settings.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		settings.Port = servePort
	}
	synth, err := rt.synthesizer()
	if err != nil {
		return err
	}
	if _, disabled := synth.(synthesis.Disabled); disabled {
		logger.Warn("no synthesis backend configured, every request will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(settings, synth, api.WithLogger(logger), api.WithMetrics(rt.metrics))
	if err := srv.Start(ctx); err != nil {
		return err
	}
	started := time.Now()
	cmd.Printf("warroom API listening on %s\n", srv.BaseURL())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("api stopped", zap.Duration("uptime", time.Since(started)))
	return nil
}
