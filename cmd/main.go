package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	cfgPkg "github.com/xhad/de5chat/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "de5chat",
	Short:        "DE5 Chat Assistant backend",
	Long:         "de5chat builds a searchable knowledge base from the DE5 website and serves a grounded chat assistant and lead capture over HTTP.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration, reporting every problem.
func loadConfig() (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d problems)", len(errs))
	}
	return cfg, nil
}
