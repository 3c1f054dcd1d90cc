package knowledge

import (
	"context"
	"errors"
	"log"

	"github.com/xhad/de5chat/internal/models"
	"github.com/xhad/de5chat/internal/types"
	"github.com/xhad/de5chat/pkg/index"
	"github.com/xhad/de5chat/pkg/processor"
	"github.com/xhad/de5chat/pkg/scraper"
)

// Report summarizes one knowledge base build.
type Report struct {
	Discovered   int
	Loaded       int
	Chunks       int
	Indexed      int
	UsedSeedOnly bool
	UsedFallback bool
}

type BuilderConfig struct {
	Scraper      *scraper.Scraper
	Processor    processor.Processor
	Embedder     types.EmbeddingProvider
	Store        types.IndexStore
	Index        index.BuildOptions
	SeedURL      string
	FallbackText string
	// OnStage is told when each stage begins, with the number of items it
	// will process.
	OnStage func(stage string, total int)
}

// Builder turns the website into a persisted embedding index.
type Builder struct {
	config BuilderConfig
}

func NewBuilder(config BuilderConfig) (*Builder, error) {
	if config.Scraper == nil {
		return nil, errors.New("scraper is required")
	}
	if config.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if config.Store == nil {
		return nil, errors.New("index store is required")
	}
	if config.Processor.Config().ChunkSize == 0 {
		p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkOverlap: 200})
		if err != nil {
			return nil, err
		}
		config.Processor = p
	}
	if config.SeedURL == "" {
		config.SeedURL = config.Scraper.BaseURL()
	}
	return &Builder{config: config}, nil
}

// Build discovers and loads the site's pages, chunks them and builds the
// index. When nothing could be loaded the index is built from the fallback
// text so the assistant always has some grounding.
func (b *Builder) Build(ctx context.Context) (*index.Index, Report, error) {
	var report Report

	b.stage("discover", 1)
	urls := b.config.Scraper.DiscoverLinks(ctx)
	report.Discovered = len(urls)
	if len(urls) == 0 {
		log.Printf("no links discovered, loading %s only", b.config.SeedURL)
		urls = []string{b.config.SeedURL}
		report.UsedSeedOnly = true
	}

	b.stage("load", len(urls))
	docs := b.config.Scraper.Load(ctx, urls)
	report.Loaded = len(docs)
	if len(docs) == 0 {
		log.Printf("no documents loaded, using fallback content")
		docs = []models.Document{scraper.FallbackDocument(b.config.FallbackText)}
		report.UsedFallback = true
	}

	b.stage("chunk", len(docs))
	chunks := b.config.Processor.Process(docs)
	report.Chunks = len(chunks)

	b.stage("embed", len(chunks))
	idx, err := index.Build(ctx, b.config.Embedder, b.config.Store, chunks, b.config.Index)
	if err != nil {
		return nil, report, err
	}
	report.Indexed = idx.Len()

	return idx, report, nil
}

func (b *Builder) stage(name string, total int) {
	if b.config.OnStage != nil {
		b.config.OnStage(name, total)
	}
}
