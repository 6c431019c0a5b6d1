package synthesis

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/warroom/internal/config"
	"github.com/kingrea/warroom/internal/metrics"
)

// Providers understood by NewBackend.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Settings selects and configures a synthesizer.
type Settings struct {
	Endpoint  string
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	MaxTokens int
}

// SettingsFromConfig reads the synthesis section. The API key falls back to
// the provider's conventional environment variable.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		cfg = config.Default()
	}
	s := Settings{
		Endpoint:  cfg.Synthesis.Endpoint,
		Provider:  cfg.Synthesis.Provider,
		Model:     cfg.Synthesis.Model,
		BaseURL:   cfg.Synthesis.BaseURL,
		APIKey:    cfg.Synthesis.APIKey,
		Timeout:   cfg.Synthesis.Timeout,
		MaxTokens: cfg.Synthesis.MaxTokens,
	}
	if s.APIKey == "" {
		switch s.Provider {
		case ProviderOpenAI:
			s.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		default:
			s.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
		}
	}
	return s
}

// NewBackend builds the model backend for s.Provider.
func NewBackend(s Settings) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", ProviderAnthropic:
		return NewAnthropicBackend(s)
	case ProviderOpenAI:
		return NewOpenAIBackend(s)
	default:
		return nil, fmt.Errorf("synthesis: unknown provider %q", s.Provider)
	}
}

// New picks the synthesizer for s: a remote endpoint when one is set, an
// in-process Service when a backend can be built, Disabled otherwise.
func New(s Settings, logger *zap.Logger, m *metrics.Metrics) (Synthesizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if endpoint := strings.TrimSpace(s.Endpoint); endpoint != "" {
		logger.Info("synthesis via remote endpoint", zap.String("endpoint", endpoint))
		return NewClient(endpoint, WithClientTimeout(s.Timeout)), nil
	}
	backend, err := NewBackend(s)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			logger.Info("synthesis disabled", zap.String("reason", err.Error()))
			return Disabled{}, nil
		}
		return nil, err
	}
	logger.Info("synthesis via provider",
		zap.String("provider", s.Provider),
		zap.String("model", s.Model),
	)
	return NewService(backend,
		WithLogger(logger),
		WithMetrics(m),
		WithTimeout(s.Timeout),
	)
}
