package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/warroom/internal/metrics"
)

// Backend completes a single prompt with raw model text.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BackendFunc adapts a function into a Backend.
type BackendFunc func(ctx context.Context, prompt string) (string, error)

// Complete executes f.
func (f BackendFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Service is the in-process Synthesizer: prompt, one backend call, validate.
type Service struct {
	backend   Backend
	validator *Validator
	logger    *zap.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records call outcomes on m.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTimeout bounds each backend call. Zero leaves the caller's deadline.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService wires a backend to the summary validator.
func NewService(backend Backend, opts ...ServiceOption) (*Service, error) {
	if backend == nil {
		return nil, ErrUnavailable
	}
	v, err := defaultValidator()
	if err != nil {
		return nil, err
	}
	s := &Service{
		backend:   backend,
		validator: v,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Synthesize builds the prompt, calls the backend once and validates the
// result.
func (s *Service) Synthesize(ctx context.Context, directive string, history []Turn) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	prompt := BuildPrompt(directive, history)
	raw, err := s.backend.Complete(ctx, prompt)
	if err != nil {
		s.metrics.ObserveSynthesis(metrics.ResultFailure, time.Since(start))
		s.logger.Warn("synthesis backend failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return Summary{}, fmt.Errorf("synthesis: backend: %w", err)
	}
	summary, err := s.validator.ParseSummary(raw)
	if err != nil {
		s.metrics.ObserveSynthesis(metrics.ResultInvalid, time.Since(start))
		s.logger.Warn("synthesis output rejected",
			zap.Error(err),
			zap.Int("response_bytes", len(raw)),
		)
		return Summary{}, err
	}
	s.metrics.ObserveSynthesis(metrics.ResultSuccess, time.Since(start))
	s.logger.Debug("synthesis complete",
		zap.String("title", summary.Title),
		zap.String("risk", string(summary.RiskLevel)),
		zap.Int("turns", len(history)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

// Describe names the outcome of a Synthesize error for logs and metrics.
func Describe(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrUnavailable):
		return metrics.ResultUnavailable
	case errors.Is(err, ErrInvalidSummary):
		return metrics.ResultInvalid
	default:
		return metrics.ResultFailure
	}
}

func trimBaseURL(base, fallback string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = fallback
	}
	return strings.TrimRight(base, "/")
}
