package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultOllamaURL = "http://localhost:11434"
	DefaultTimeout   = 30 * time.Second
)

// ErrProviderTimeout is returned when a provider call exceeds its timeout.
var ErrProviderTimeout = errors.New("provider call timed out")

// ProviderError wraps any other failure of an embedding or generation call.
type ProviderError struct {
	Provider string
	Op       string
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func providerError(provider, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", provider, op, ErrProviderTimeout)
	}
	return &ProviderError{Provider: provider, Op: op, Cause: err}
}

// IsTimeout reports whether err came from a provider call that timed out.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrProviderTimeout)
}

type modelOptions struct {
	model          string
	embeddingModel string
	baseURL        string
	apiKey         string
}

func newOllama(o modelOptions) (*ollama.LLM, error) {
	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := o.model
	if o.embeddingModel != "" {
		model = o.embeddingModel
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	return llm, nil
}

func newOpenAI(o modelOptions) (*openai.LLM, error) {
	opts := []openai.Option{}
	if o.model != "" {
		opts = append(opts, openai.WithModel(o.model))
	}
	if o.embeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(o.embeddingModel))
	}
	if o.apiKey != "" {
		opts = append(opts, openai.WithToken(o.apiKey))
	}
	if o.baseURL != "" {
		opts = append(opts, openai.WithBaseURL(o.baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai: %w", err)
	}
	return llm, nil
}
