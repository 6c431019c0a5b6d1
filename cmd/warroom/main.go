// cmd/warroom/main.go
//
// Entry point for the warroom CLI.
//
//	warroom play     run the war room in the terminal
//	warroom serve    run the decision synthesis HTTP API
//	warroom script   print the scripted catalog
//
// Every command resolves the project directory, creates .warroom/ there on
// first run, and layers config from defaults, .warroom/config.yaml and
// WARROOM_* environment variables.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kingrea/warroom/internal/config"
	"github.com/kingrea/warroom/internal/logging"
	"github.com/kingrea/warroom/internal/metrics"
	"github.com/kingrea/warroom/internal/synthesis"
)

var (
	// projectDir is where .warroom/ lives; defaults to the working directory
	projectDir string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "warroom",
	Short: "Scripted multi-agent incident war room",
	Long: `warroom plays a scripted production incident in which you, the CTO, steer a
room of engineers and AI agents from diagnosis through review to deployment.

Your approval directive is summarised by a single language model call; the
scenario continues without a summary when no model backend is configured.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project directory holding .warroom/ (defaults to cwd)")
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scriptCmd)
}

// env bundles what every long-running command needs.
type env struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *metrics.Metrics
}

// loadRuntime resolves the project, loads config and builds the logger.
// stderr forces logging to stderr regardless of logging.file.
func loadRuntime(stderr bool) (*env, error) {
	dir := projectDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitDir(abs); err != nil {
		return nil, fmt.Errorf("init %s: %w", config.WarroomDir, err)
	}
	cfg, err := config.NewConfig(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if stderr {
		cfg.Logging.File = ""
	}
	log, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, metrics: metrics.Default()}, nil
}

func (r *env) close() {
	_ = r.log.Close()
}

// synthesizer picks the remote endpoint, then a model backend, then Disabled.
func (r *env) synthesizer() (synthesis.Synthesizer, error) {
	synth, err := synthesis.New(synthesis.SettingsFromConfig(r.cfg), r.log.Zap(), r.metrics)
	if err != nil {
		return nil, fmt.Errorf("configure synthesis: %w", err)
	}
	return synth, nil
}
