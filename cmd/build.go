package main

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/de5chat/pkg/index"
	"github.com/xhad/de5chat/pkg/knowledge"
	"github.com/xhad/de5chat/pkg/processor"
	"github.com/xhad/de5chat/pkg/scraper"
)

var (
	buildSeedURL string
	buildStrict  bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the knowledge base index",
	Long: `Discover pages on the DE5 website, extract their text, split it into chunks and
embed them into the configured index. Rebuilding replaces the previous index.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildSeedURL, "url", "", "Seed URL to crawl (overrides scraper.base_url)")
	buildCmd.Flags().BoolVar(&buildStrict, "strict", false, "Abort when any chunk cannot be embedded")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if buildSeedURL != "" {
		cfg.Scraper.BaseURL = buildSeedURL
	}
	if cmd.Flags().Changed("strict") {
		cfg.Index.Strict = buildStrict
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	var bar *progressbar.ProgressBar

	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:          cfg.Scraper.BaseURL,
		IgnorePatterns:   cfg.Scraper.IgnorePatterns,
		ContentSelectors: cfg.Scraper.ContentSelectors,
		Concurrency:      cfg.Scraper.Concurrency,
		Timeout:          cfg.Scraper.Timeout,
		UserAgent:        cfg.Scraper.UserAgent,
		OnProgress: func(string) {
			mu.Lock()
			defer mu.Unlock()
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: *cfg.Processor.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize processor: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	indexStore, err := newIndexStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer indexStore.Close()

	builder, err := knowledge.NewBuilder(knowledge.BuilderConfig{
		Scraper:      s,
		Processor:    p,
		Embedder:     embedder,
		Store:        indexStore,
		FallbackText: cfg.Scraper.FallbackText,
		Index: index.BuildOptions{
			BatchSize: cfg.Index.BatchSize,
			EmbedRate: cfg.Index.EmbedRate,
			Strict:    cfg.Index.Strict,
			OnProgress: func(done, _ int) {
				mu.Lock()
				defer mu.Unlock()
				if bar != nil {
					_ = bar.Set(done)
				}
			},
		},
		OnStage: func(stage string, total int) {
			mu.Lock()
			defer mu.Unlock()
			if bar != nil {
				_ = bar.Finish()
				fmt.Println()
			}
			bar = stageBar(stage, total)
		},
	})
	if err != nil {
		return err
	}

	color.Blue("\nBuilding knowledge base from %s\n", cfg.Scraper.BaseURL)

	_, report, err := builder.Build(ctx)
	mu.Lock()
	if bar != nil {
		_ = bar.Finish()
	}
	mu.Unlock()
	fmt.Println()
	if err != nil {
		color.Red("✗ Build failed: %v\n", err)
		return err
	}

	if report.UsedSeedOnly {
		color.Yellow("! No links discovered, indexed the seed page only\n")
	}
	if report.UsedFallback {
		color.Yellow("! No pages could be loaded, indexed the fallback description\n")
	}
	color.Green("✓ Loaded %d documents\n", report.Loaded)
	color.Green("✓ Processed into %d chunks\n", report.Chunks)
	color.Green("✓ Indexed %d chunks at %s\n", report.Indexed, indexStore.Location())
	return nil
}
