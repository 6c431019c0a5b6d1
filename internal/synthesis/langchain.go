package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// LangChainBackend completes prompts through any langchaingo model.
type LangChainBackend struct {
	model       llms.Model
	maxTokens   int
	temperature float64
}

// NewLangChainBackend wraps an existing langchaingo model.
func NewLangChainBackend(model llms.Model, maxTokens int) *LangChainBackend {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &LangChainBackend{model: model, maxTokens: maxTokens, temperature: 0.2}
}

// NewOpenAIBackend builds a LangChainBackend on an OpenAI-compatible endpoint.
func NewOpenAIBackend(s Settings) (*LangChainBackend, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, fmt.Errorf("%w: openai API key required", ErrUnavailable)
	}
	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []openai.Option{
		openai.WithToken(s.APIKey),
		openai.WithModel(model),
	}
	if base := strings.TrimSpace(s.BaseURL); base != "" {
		opts = append(opts, openai.WithBaseURL(base))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return NewLangChainBackend(llm, s.MaxTokens), nil
}

// Complete prefixes the system framing and calls the model once.
func (b *LangChainBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if b.model == nil {
		return "", ErrUnavailable
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, b.model, systemPrompt+"\n\n"+prompt,
		llms.WithMaxTokens(b.maxTokens),
		llms.WithTemperature(b.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("langchain generate: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return out, nil
}
