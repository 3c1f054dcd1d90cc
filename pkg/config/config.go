package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
}

type IndexConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	DatabaseURL string `yaml:"database_url"`
	TableName   string `yaml:"table_name"`
	// Lists enables an approximate ivfflat index on the pgvector table.
	// Zero keeps nearest-neighbour search exact.
	Lists     int     `yaml:"lists"`
	BatchSize int     `yaml:"batch_size"`
	EmbedRate float64 `yaml:"embed_rate"`
	Strict    bool    `yaml:"strict"`
	TopK      int     `yaml:"top_k"`
}

type ScraperConfig struct {
	BaseURL          string        `yaml:"base_url"`
	IgnorePatterns   []string      `yaml:"ignore_patterns"`
	ContentSelectors []string      `yaml:"content_selectors"`
	Concurrency      int           `yaml:"concurrency"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	FallbackText     string        `yaml:"fallback_text"`
}

type ProcessorConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is nil when the key is absent and then defaults to a
	// fifth of ChunkSize.
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

type AssistantConfig struct {
	SystemPrompt     string   `yaml:"system_prompt"`
	FallbackResponse string   `yaml:"fallback_response"`
	LeadInvitation   string   `yaml:"lead_invitation"`
	LeadKeywords     []string `yaml:"lead_keywords"`
}

type LeadsConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Index     IndexConfig     `yaml:"index"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Processor ProcessorConfig `yaml:"processor"`
	Assistant AssistantConfig `yaml:"assistant"`
	Leads     LeadsConfig     `yaml:"leads"`
	Server    ServerConfig    `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/de5chat/config.yaml"),
			"/etc/de5chat/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "openai" {
			config.LLM.Model = "gpt-3.5-turbo"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.EmbeddingModel == "" {
		if config.LLM.Provider == "openai" {
			config.LLM.EmbeddingModel = "text-embedding-3-small"
		} else {
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		}
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 30 * time.Second
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "sqlite"
	}
	if config.Index.Dir == "" {
		config.Index.Dir = "./kb_index"
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "kb_records"
	}
	if config.Index.BatchSize == 0 {
		config.Index.BatchSize = 32
	}
	if config.Index.TopK == 0 {
		config.Index.TopK = 4
	}

	if config.Scraper.BaseURL == "" {
		config.Scraper.BaseURL = "https://de5.tech/"
	}
	if config.Scraper.Concurrency == 0 {
		config.Scraper.Concurrency = 4
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 30 * time.Second
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == nil {
		overlap := config.Processor.ChunkSize / 5
		config.Processor.ChunkOverlap = &overlap
	}

	if config.Leads.Backend == "" {
		config.Leads.Backend = "sqlite"
	}
	if config.Leads.Path == "" {
		config.Leads.Path = "leads.db"
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Server.AllowedOrigins == nil {
		config.Server.AllowedOrigins = []string{"*"}
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 15 * time.Second
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && config.LLM.Provider != "openai" {
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.LLM.APIKey == "" {
		config.LLM.APIKey = apiKey
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		if config.Index.DatabaseURL == "" {
			config.Index.DatabaseURL = dbURL
		}
		if config.Leads.DatabaseURL == "" {
			config.Leads.DatabaseURL = dbURL
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
