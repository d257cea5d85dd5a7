package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ehr-chatbot/internal/metrics"
	"ehr-chatbot/internal/models"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 30 * time.Second
)

// Chat roles understood by the generative backend
const (
	CompletionRoleSystem    = "system"
	CompletionRoleUser      = "user"
	CompletionRoleAssistant = "assistant"
)

// CompletionMessage is one chat message sent to the generative backend
type CompletionMessage struct {
	Role    string
	Content string
}

// CompletionParams are the sampling parameters for a single completion
type CompletionParams struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completer produces one chat completion
type Completer interface {
	Complete(ctx context.Context, messages []CompletionMessage, params CompletionParams) (string, error)
}

// LLMConfig configures the OpenAI-compatible backend
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService handles communication with an OpenAI-compatible chat endpoint
type LLMService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewLLMService creates a new LLM service instance. A missing API key is not an
// error: every completion then reports ErrSynthesisUnavailable.
func NewLLMService(config LLMConfig, logger *zap.SugaredLogger) *LLMService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if config.Model == "" {
		config.Model = DefaultLLMModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultLLMTimeout
	}

	s := &LLMService{
		model:   config.Model,
		timeout: config.Timeout,
		logger:  logger,
	}
	if config.APIKey != "" {
		clientConfig := openai.DefaultConfig(config.APIKey)
		if config.BaseURL != "" {
			clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
		}
		s.client = openai.NewClientWithConfig(clientConfig)
	}
	return s
}

// Configured reports whether credentials were supplied
func (s *LLMService) Configured() bool {
	return s.client != nil
}

// Complete sends the messages and returns the first choice's content
func (s *LLMService) Complete(ctx context.Context, messages []CompletionMessage, params CompletionParams) (result string, err error) {
	if s.client == nil {
		return "", fmt.Errorf("%w: no API key configured", models.ErrSynthesisUnavailable)
	}

	start := time.Now()
	defer func() { metrics.ObserveBackend(metrics.BackendLLM, start, err) }()

	model := params.Model
	if model == "" {
		model = s.model
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    chat,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: backend returned status %d: %s", models.ErrSynthesisUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("%w: %v", models.ErrSynthesisUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", models.ErrSynthesisUnavailable)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty completion", models.ErrSynthesisUnavailable)
	}

	s.logger.Debugf("completion model=%s prompt_tokens=%d completion_tokens=%d",
		model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return content, nil
}

// HealthCheck verifies the backend is reachable and the key is accepted
func (s *LLMService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("%w: no API key configured", models.ErrSynthesisUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM backend not reachable: %w", err)
	}
	return nil
}
