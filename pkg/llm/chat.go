package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/de5chat/internal/models"
	"github.com/xhad/de5chat/internal/types"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider        string
	Model           string
	Temperature     float64
	MaxTokens       int
	ContextTemplate string
	BaseURL         string // Ollama server URL or OpenAI-compatible endpoint
	APIKey          string
	Timeout         time.Duration
}

// ChatInput is everything one generation call is grounded on.
type ChatInput struct {
	SystemPrompt string
	Query        string
	Context      []models.ScoredChunk
	History      []models.ConversationTurn
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    types.Generator
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		switch config.Provider {
		case ProviderOpenAI:
			config.Model = "gpt-3.5-turbo"
		default:
			config.Model = "mistral"
		}
	}

	var model types.Generator
	switch config.Provider {
	case ProviderOllama:
		llm, err := newOllama(modelOptions{model: config.Model, baseURL: config.BaseURL})
		if err != nil {
			return nil, err
		}
		model = llm
	case ProviderOpenAI:
		llm, err := newOpenAI(modelOptions{model: config.Model, baseURL: config.BaseURL, apiKey: config.APIKey})
		if err != nil {
			return nil, err
		}
		model = llm
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", config.Provider)
	}

	return NewChatEngine(model, config)
}

// NewChatEngine wraps an existing generator.
func NewChatEngine(model types.Generator, config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Relevant website content:\n%s"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// Chat generates a response grounded on the input. When onChunk is not nil
// the response is streamed to it as it is produced.
func (ce *ChatEngine) Chat(ctx context.Context, in ChatInput, onChunk func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	options := []llms.CallOption{
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
	}
	if onChunk != nil {
		options = append(options, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			onChunk(string(chunk))
			return nil
		}))
	}

	response, err := ce.llm.GenerateContent(ctx, ce.messages(in), options...)
	if err != nil {
		return "", providerError(ce.config.Provider, "chat", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", providerError(ce.config.Provider, "chat", errors.New("no response from LLM"))
	}

	content := strings.TrimSpace(response.Choices[0].Content)
	if content == "" {
		return "", providerError(ce.config.Provider, "chat", errors.New("empty response from LLM"))
	}
	return content, nil
}

func (ce *ChatEngine) messages(in ChatInput) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(in.History)*2+3)
	if in.SystemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, in.SystemPrompt))
	}
	if len(in.Context) > 0 {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem,
			fmt.Sprintf(ce.config.ContextTemplate, formatContext(in.Context))))
	}
	for _, turn := range in.History {
		content = append(content,
			llms.TextParts(llms.ChatMessageTypeHuman, turn.UserMessage),
			llms.TextParts(llms.ChatMessageTypeAI, turn.AssistantResponse),
		)
	}
	return append(content, llms.TextParts(llms.ChatMessageTypeHuman, in.Query))
}

func formatContext(chunks []models.ScoredChunk) string {
	var contextBuilder strings.Builder
	for _, chunk := range chunks {
		contextBuilder.WriteString(fmt.Sprintf("Source: %s\n%s\n\n", chunk.SourceURL, chunk.Text))
	}
	return strings.TrimSpace(contextBuilder.String())
}

// FormatSources lists the distinct source URLs of the chunks.
func FormatSources(chunks []models.ScoredChunk) []string {
	var sources []string
	seen := make(map[string]bool)

	for _, chunk := range chunks {
		if !seen[chunk.SourceURL] {
			sources = append(sources, chunk.SourceURL)
			seen[chunk.SourceURL] = true
		}
	}
	return sources
}
