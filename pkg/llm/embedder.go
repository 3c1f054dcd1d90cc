package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
)

type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL or OpenAI-compatible endpoint
	APIKey    string
	BatchSize int
	Timeout   time.Duration
}

// Embedder computes embeddings through a langchaingo client and bounds every
// call by the configured timeout.
type Embedder struct {
	config   EmbedderConfig
	embedder embeddings.Embedder
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}

	var client embeddings.EmbedderClient
	switch config.Provider {
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		llm, err := newOllama(modelOptions{model: config.Model, baseURL: config.BaseURL})
		if err != nil {
			return nil, err
		}
		client = llm
	case ProviderOpenAI:
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		llm, err := newOpenAI(modelOptions{embeddingModel: config.Model, baseURL: config.BaseURL, apiKey: config.APIKey})
		if err != nil {
			return nil, err
		}
		client = llm
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.Provider)
	}

	return NewEmbedder(client, config)
}

// NewEmbedder wraps an existing langchaingo embedding client.
func NewEmbedder(client embeddings.EmbedderClient, config EmbedderConfig) (*Embedder, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config:   config,
		embedder: emb,
	}, nil
}

// ProviderID identifies provider and model, e.g. "ollama:nomic-embed-text:latest".
func (e *Embedder) ProviderID() string {
	return e.config.Provider + ":" + e.config.Model
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, providerError(e.config.Provider, "embed documents", err)
	}
	if len(vectors) != len(texts) {
		return nil, providerError(e.config.Provider, "embed documents",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, providerError(e.config.Provider, "embed query", err)
	}
	return vector, nil
}
