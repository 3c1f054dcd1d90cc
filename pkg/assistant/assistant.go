package assistant

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/xhad/de5chat/internal/models"
	"github.com/xhad/de5chat/pkg/llm"
)

// State is the stage an answer reached.
type State string

const (
	StateReceived  State = "RECEIVED"
	StateRetrieved State = "RETRIEVED"
	StateAnswered  State = "ANSWERED"
	StateFailed    State = "FAILED"
)

// Retriever finds the chunks most relevant to a query.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]models.ScoredChunk, error)
}

// Chatter generates a grounded response.
type Chatter interface {
	Chat(ctx context.Context, in llm.ChatInput, onChunk func(string)) (string, error)
}

type AssistantConfig struct {
	SystemPrompt     string
	FallbackResponse string
	LeadInvitation   string
	LeadKeywords     []string
	TopK             int
}

type Request struct {
	Message string                    `json:"message"`
	UserID  *string                   `json:"user_id"`
	History []models.ConversationTurn `json:"history,omitempty"`
}

type Result struct {
	Response string
	UserID   *string
	State    State
	Sources  []string
}

type Option func(*answerOptions)

type answerOptions struct {
	onChunk func(string)
}

// WithStreaming forwards generated text to fn as it is produced.
func WithStreaming(fn func(string)) Option {
	return func(o *answerOptions) {
		o.onChunk = fn
	}
}

type Assistant struct {
	config    AssistantConfig
	retriever Retriever
	chat      Chatter
}

// New creates an assistant. A nil retriever makes every answer fall back.
func New(retriever Retriever, chat Chatter, config AssistantConfig) *Assistant {
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	if config.FallbackResponse == "" {
		config.FallbackResponse = DefaultFallbackResponse
	}
	if config.LeadInvitation == "" {
		config.LeadInvitation = DefaultLeadInvitation
	}
	if config.LeadKeywords == nil {
		config.LeadKeywords = DefaultLeadKeywords()
	}
	if config.TopK <= 0 {
		config.TopK = 4
	}

	return &Assistant{
		config:    config,
		retriever: retriever,
		chat:      chat,
	}
}

// Answer always produces a response. Failures anywhere in retrieval or
// generation yield the fallback response with State FAILED.
func (a *Assistant) Answer(ctx context.Context, req Request, opts ...Option) Result {
	var o answerOptions
	for _, opt := range opts {
		opt(&o)
	}

	result := Result{UserID: req.UserID, State: StateReceived}

	response, sources, err := a.generate(ctx, req, o, &result.State)
	if err != nil {
		log.Printf("answer failed in state %s: %v", result.State, err)
		result.State = StateFailed
		response = a.config.FallbackResponse
		sources = nil
	} else {
		result.State = StateAnswered
	}

	if a.wantsFollowUp(req.Message) {
		response += "\n\n" + a.config.LeadInvitation
	}

	result.Response = response
	result.Sources = sources
	return result
}

func (a *Assistant) generate(ctx context.Context, req Request, o answerOptions, state *State) (string, []string, error) {
	if a.retriever == nil || a.chat == nil {
		return "", nil, errors.New("knowledge base not loaded")
	}

	chunks, err := a.retriever.Query(ctx, req.Message, a.config.TopK)
	if err != nil {
		return "", nil, err
	}
	*state = StateRetrieved

	response, err := a.chat.Chat(ctx, llm.ChatInput{
		SystemPrompt: a.config.SystemPrompt,
		Query:        req.Message,
		Context:      chunks,
		History:      req.History,
	}, o.onChunk)
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(response) == "" {
		return "", nil, errors.New("empty response")
	}

	return response, llm.FormatSources(chunks), nil
}

func (a *Assistant) wantsFollowUp(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range a.config.LeadKeywords {
		if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
