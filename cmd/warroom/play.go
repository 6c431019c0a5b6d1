package main

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/warroom/internal/eventbridge"
	"github.com/kingrea/warroom/internal/logbook"
	"github.com/kingrea/warroom/internal/tui"
	"github.com/kingrea/warroom/internal/warroom"
)

var (
	playVariant  string
	playSpeed    float64
	playEndpoint string
)

func init() {
	playCmd.Flags().StringVar(&playVariant, "variant", "", "script variant: full or classic (overrides config)")
	playCmd.Flags().Float64Var(&playSpeed, "speed", 0, "playback speed multiplier (overrides config)")
	playCmd.Flags().StringVar(&playEndpoint, "synthesis-endpoint", "", "remote POST /synthesize endpoint (overrides config)")
}

// playCmd runs the war room TUI with an in-process session
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the war room in the terminal",
	Long: `Play the scripted incident in the terminal.

Examples:
  # Play the full script
  warroom play

  # Classic variant at double speed
  warroom play --variant classic --speed 2

  # Summarise decisions through a running "warroom serve"
  warroom play --synthesis-endpoint http://127.0.0.1:8787`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(false)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg
	if cmd.Flags().Changed("variant") {
		cfg.Variant = playVariant
	}
	if cmd.Flags().Changed("speed") {
		if playSpeed <= 0 {
			return fmt.Errorf("--speed must be positive, got %v", playSpeed)
		}
		cfg.Timing.Speed = playSpeed
	}
	if cmd.Flags().Changed("synthesis-endpoint") {
		cfg.Synthesis.Endpoint = playEndpoint
	}
	variant, err := warroom.ParseVariant(cfg.Variant)
	if err != nil {
		return err
	}
	synth, err := rt.synthesizer()
	if err != nil {
		return err
	}
	journal, err := logbook.New(filepath.Join(cfg.LogsDir(), "decisions.log"))
	if err != nil {
		return fmt.Errorf("open decision log: %w", err)
	}
	logger := rt.log.Zap()
	router := eventbridge.NewRouter(eventbridge.RouterWithLogger(logger))

	factory := func(pub eventbridge.Publisher) *warroom.Session {
		return warroom.New(
			warroom.WithVariant(variant),
			warroom.WithSpeed(cfg.Timing.Speed),
			warroom.WithSynthesizer(synth),
			warroom.WithSynthesisTimeout(cfg.Synthesis.Timeout),
			warroom.WithPublisher(pub),
			warroom.WithLogger(logger),
			warroom.WithMetrics(rt.metrics),
			warroom.WithJournal(journal),
		)
	}
	app, err := tui.NewApp(factory,
		tui.WithRouter(router),
		tui.WithLogbook(journal),
		tui.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	logger.Info("starting war room",
		zap.String("variant", string(variant)),
		zap.Float64("speed", cfg.Timing.Speed),
	)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
