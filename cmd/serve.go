package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xhad/de5chat/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Open the knowledge base index and the lead store, then serve the chat and
lead capture endpoints until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	indexStore, err := newIndexStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer indexStore.Close()

	idx, err := openIndex(ctx, embedder, indexStore)
	if err != nil {
		return err
	}
	log.Printf("loaded index with %d chunks from %s", idx.Len(), indexStore.Location())

	leadStore, err := newLeadStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open lead store: %w", err)
	}
	defer leadStore.Close()

	asst, err := newAssistant(cfg, idx)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, asst, leadStore)

	return srv.Start(ctx)
}
