package types

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/de5chat/internal/models"
)

// Core interfaces

// EmbeddingProvider turns text into fixed-length vectors. ProviderID
// identifies the provider and model so indexes built with one provider are
// never opened with another.
type EmbeddingProvider interface {
	ProviderID() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is the subset of llms.Model the assistant needs.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// IndexStore persists the records of one embedding index. Save replaces
// whatever was stored before.
type IndexStore interface {
	Save(ctx context.Context, meta models.IndexMeta, records []models.EmbeddingRecord) error
	Load(ctx context.Context) (models.IndexMeta, []models.EmbeddingRecord, error)
	Location() string
	Close() error
}
