// Package synthesis turns a war room transcript and the operator's directive
// into a structured decision summary using a text-generation backend.
//
// Calls are single-shot: no retries, no caching, no rate limiting. Every
// failure is returned as an error and callers decide how to degrade.
package synthesis

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnavailable is returned when no backend is configured.
	ErrUnavailable = errors.New("synthesis: no backend configured")
	// ErrInvalidSummary marks backend output that is not a valid summary.
	ErrInvalidSummary = errors.New("synthesis: invalid summary")
)

// RiskLevel grades the approved approach.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Complexity grades the engineering effort.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Summary is the structured decision extracted from a conversation.
type Summary struct {
	Title      string     `json:"title"`
	Strategy   string     `json:"strategy"`
	Components []string   `json:"components"`
	RiskLevel  RiskLevel  `json:"riskLevel"`
	Complexity Complexity `json:"complexity"`
}

// Turn is one transcript entry.
type Turn struct {
	SpeakerLabel string `json:"speakerLabel"`
	Text         string `json:"text"`
}

// Synthesizer produces a Summary for a directive and the conversation that
// preceded it.
type Synthesizer interface {
	Synthesize(ctx context.Context, directive string, history []Turn) (Summary, error)
}

// Func adapts a function into a Synthesizer.
type Func func(ctx context.Context, directive string, history []Turn) (Summary, error)

// Synthesize executes f.
func (f Func) Synthesize(ctx context.Context, directive string, history []Turn) (Summary, error) {
	if f == nil {
		return Summary{}, ErrUnavailable
	}
	return f(ctx, directive, history)
}

// Disabled is the Synthesizer used when no backend is configured.
type Disabled struct{}

// Synthesize always fails with ErrUnavailable.
func (Disabled) Synthesize(context.Context, string, []Turn) (Summary, error) {
	return Summary{}, ErrUnavailable
}

// Request is the POST /synthesize body.
type Request struct {
	DirectiveText string `json:"directiveText"`
	History       []Turn `json:"history"`
}

// Response is the POST /synthesize reply. Exactly one field is set.
type Response struct {
	Summary *Summary `json:"summary,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func normalizeHistory(history []Turn) []Turn {
	out := make([]Turn, 0, len(history))
	for _, turn := range history {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		label := strings.TrimSpace(turn.SpeakerLabel)
		if label == "" {
			label = "unknown"
		}
		out = append(out, Turn{SpeakerLabel: label, Text: text})
	}
	return out
}
