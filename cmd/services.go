package main

import (
	"context"
	"fmt"

	"github.com/xhad/de5chat/internal/types"
	"github.com/xhad/de5chat/pkg/assistant"
	cfgPkg "github.com/xhad/de5chat/pkg/config"
	"github.com/xhad/de5chat/pkg/index"
	"github.com/xhad/de5chat/pkg/leads"
	"github.com/xhad/de5chat/pkg/llm"
	"github.com/xhad/de5chat/pkg/store"
)

func newEmbedder(cfg *cfgPkg.Config) (*llm.Embedder, error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.EmbeddingModel,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		BatchSize: cfg.Index.BatchSize,
		Timeout:   cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return embedder, nil
}

func newIndexStore(ctx context.Context, cfg *cfgPkg.Config) (types.IndexStore, error) {
	switch cfg.Index.Backend {
	case "pgvector":
		vs, err := store.NewPGVectorStore(ctx, store.PGVectorConfig{
			ConnString: cfg.Index.DatabaseURL,
			TableName:  cfg.Index.TableName,
			Lists:      cfg.Index.Lists,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		return vs, nil
	default:
		return store.NewSQLiteStore(store.SQLiteConfig{Dir: cfg.Index.Dir}), nil
	}
}

// openIndex loads the built index. With the pgvector backend ranking runs in
// the database.
func openIndex(ctx context.Context, embedder types.EmbeddingProvider, indexStore types.IndexStore) (*index.Index, error) {
	idx, err := index.Open(ctx, embedder, indexStore)
	if err != nil {
		return nil, err
	}
	if searcher, ok := indexStore.(index.Searcher); ok {
		idx = idx.WithSearcher(searcher)
	}
	return idx, nil
}

func newLeadStore(ctx context.Context, cfg *cfgPkg.Config) (leads.Store, error) {
	switch cfg.Leads.Backend {
	case "postgres":
		return leads.NewPostgresStore(ctx, cfg.Leads.DatabaseURL)
	default:
		return leads.NewSQLiteStore(ctx, cfg.Leads.Path)
	}
}

func newAssistant(cfg *cfgPkg.Config, idx *index.Index) (*assistant.Assistant, error) {
	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	return assistant.New(idx, chatEngine, assistant.AssistantConfig{
		SystemPrompt:     cfg.Assistant.SystemPrompt,
		FallbackResponse: cfg.Assistant.FallbackResponse,
		LeadInvitation:   cfg.Assistant.LeadInvitation,
		LeadKeywords:     cfg.Assistant.LeadKeywords,
		TopK:             cfg.Index.TopK,
	}), nil
}
