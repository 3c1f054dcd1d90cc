package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "OpenAI API key is required (set OPENAI_API_KEY)",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q (expected ollama or openai)", c.LLM.Provider),
		})
	}

	if c.LLM.BaseURL != "" && !isAbsoluteURL(c.LLM.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout",
			Message: "timeout must be positive",
		})
	}

	// Validate Index config
	switch c.Index.Backend {
	case "sqlite":
	case "pgvector":
		if c.Index.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "index.database_url",
				Message: "database_url is required for the pgvector backend",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or pgvector)", c.Index.Backend),
		})
	}

	if c.Index.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Index.EmbedRate < 0 {
		errors = append(errors, ValidationError{
			Field:   "index.embed_rate",
			Message: "embed_rate cannot be negative",
		})
	}

	if c.Index.Lists < 0 {
		errors = append(errors, ValidationError{
			Field:   "index.lists",
			Message: "lists cannot be negative",
		})
	}

	if c.Index.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.top_k",
			Message: "top_k must be positive",
		})
	}

	// Validate Scraper config
	if !isAbsoluteURL(c.Scraper.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "scraper.base_url",
			Message: "base_url must be an absolute URL",
		})
	}

	if c.Scraper.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.concurrency",
			Message: "concurrency must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap == nil || *c.Processor.ChunkOverlap < 0 || *c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Leads config
	switch c.Leads.Backend {
	case "sqlite":
	case "postgres":
		if c.Leads.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "leads.database_url",
				Message: "database_url is required for the postgres backend",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "leads.backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or postgres)", c.Leads.Backend),
		})
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
