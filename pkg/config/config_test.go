package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OLLAMA_BASE_URL", "OPENAI_API_KEY", "DATABASE_URL", "PORT"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3"
  embedding_model: "mxbai-embed-large"
  max_tokens: 1000
  temperature: 0.5
  timeout: 45s

index:
  backend: "pgvector"
  database_url: "postgres://localhost:5432/test"
  table_name: "test_records"
  batch_size: 16
  embed_rate: 2.5
  strict: true
  lists: 100

scraper:
  base_url: "https://de5.tech/"
  ignore_patterns:
    - "/blog/"
  concurrency: 2
  timeout: 10s

processor:
  chunk_size: 500
  chunk_overlap: 100

assistant:
  lead_keywords: ["invest", "partner"]

leads:
  backend: "sqlite"
  path: "data/leads.db"

server:
  port: 9000
  allowed_origins: ["https://de5.tech"]
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, "mxbai-embed-large", config.LLM.EmbeddingModel)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 45*time.Second, config.LLM.Timeout)
	assert.Equal(t, "pgvector", config.Index.Backend)
	assert.Equal(t, "postgres://localhost:5432/test", config.Index.DatabaseURL)
	assert.Equal(t, 16, config.Index.BatchSize)
	assert.Equal(t, 2.5, config.Index.EmbedRate)
	assert.True(t, config.Index.Strict)
	assert.Equal(t, 100, config.Index.Lists)
	assert.Equal(t, 4, config.Index.TopK)
	assert.Equal(t, []string{"/blog/"}, config.Scraper.IgnorePatterns)
	assert.Equal(t, 10*time.Second, config.Scraper.Timeout)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 100, *config.Processor.ChunkOverlap)
	assert.Equal(t, []string{"invest", "partner"}, config.Assistant.LeadKeywords)
	assert.Equal(t, "data/leads.db", config.Leads.Path)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Empty(t, config.Validate())
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Equal(t, "nomic-embed-text:latest", config.LLM.EmbeddingModel)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, 0.7, config.LLM.Temperature)
	assert.Equal(t, "sqlite", config.Index.Backend)
	assert.Equal(t, "./kb_index", config.Index.Dir)
	assert.Equal(t, 32, config.Index.BatchSize)
	assert.Equal(t, "https://de5.tech/", config.Scraper.BaseURL)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 200, *config.Processor.ChunkOverlap)
	assert.Zero(t, config.Index.Lists)
	assert.Equal(t, "leads.db", config.Leads.Path)
	assert.Equal(t, 8000, config.Server.Port)
	assert.Empty(t, config.Validate())
}

func TestChunkOverlapDefaults(t *testing.T) {
	clearEnv(t)

	load := func(t *testing.T, data string) *Config {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
		config, err := LoadConfig(path)
		require.NoError(t, err)
		return config
	}

	config := load(t, "processor:\n  chunk_size: 500\n  chunk_overlap: 0\n")
	assert.Equal(t, 0, *config.Processor.ChunkOverlap)
	assert.Empty(t, config.Validate())

	config = load(t, "processor:\n  chunk_size: 150\n")
	assert.Equal(t, 30, *config.Processor.ChunkOverlap)
	assert.Empty(t, config.Validate())
}

func TestMergeWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://db/de5")
	t.Setenv("PORT", "9090")

	config := &Config{}
	config.LLM.Provider = "openai"
	mergeWithEnv(config)
	applyDefaults(config)

	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "gpt-3.5-turbo", config.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", config.LLM.EmbeddingModel)
	assert.Empty(t, config.LLM.BaseURL)
	assert.Equal(t, "postgres://db/de5", config.Index.DatabaseURL)
	assert.Equal(t, "postgres://db/de5", config.Leads.DatabaseURL)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	clearEnv(t)
	valid := func() Config {
		c, err := getDefaultConfig()
		require.NoError(t, err)
		return *c
	}

	tests := []struct {
		name           string
		modify         func(*Config)
		expectedFields []string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name: "invalid llm settings",
			modify: func(c *Config) {
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 2.5
			},
			expectedFields: []string{"llm.max_tokens", "llm.temperature"},
		},
		{
			name: "openai without key",
			modify: func(c *Config) {
				c.LLM.Provider = "openai"
				c.LLM.BaseURL = ""
			},
			expectedFields: []string{"llm.api_key"},
		},
		{
			name: "unknown backends",
			modify: func(c *Config) {
				c.Index.Backend = "redis"
				c.Leads.Backend = "csv"
			},
			expectedFields: []string{"index.backend", "leads.backend"},
		},
		{
			name: "postgres without database",
			modify: func(c *Config) {
				c.Index.Backend = "pgvector"
				c.Leads.Backend = "postgres"
			},
			expectedFields: []string{"index.database_url", "leads.database_url"},
		},
		{
			name: "bad chunking and seed",
			modify: func(c *Config) {
				overlap := c.Processor.ChunkSize
				c.Processor.ChunkOverlap = &overlap
				c.Scraper.BaseURL = "de5.tech"
			},
			expectedFields: []string{"scraper.base_url", "processor.chunk_overlap"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.modify(&config)

			var fields []string
			for _, err := range config.Validate() {
				fields = append(fields, err.Field)
			}
			assert.Equal(t, tt.expectedFields, fields)
		})
	}
}
