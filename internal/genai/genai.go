// Package genai wraps the OpenAI chat completion API as the external model
// backend for reply generation.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Default configuration for completion calls.
const (
	DefaultTimeout = 30 * time.Second
)

// Error variables for model failures. Callers are expected to recover from
// both via their fallback paths.
var (
	ErrModelUnavailable   = errors.New("model unavailable")
	ErrModelEmptyResponse = errors.New("model returned an empty response")
)

// completionService is the minimal chat-completion surface the client needs.
// The real *openai.ChatCompletionService satisfies it; tests substitute a mock.
type completionService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client calls the OpenAI chat completion API with a bounded timeout.
type Client struct {
	chat    completionService
	model   shared.ChatModel
	timeout time.Duration
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL sets a custom API base URL (for proxies or compatible backends).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the chat model identifier.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout sets the per-call deadline for completion requests.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Opts) { o.Timeout = timeout }
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("genai.NewClient: no API key configured")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	model := shared.ChatModel(cfg.Model)
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	slog.Debug("genai.NewClient: client created", "model", model, "timeout", timeout, "baseURL_set", cfg.BaseURL != "")
	return &Client{chat: &cli.Chat.Completions, model: model, timeout: timeout}, nil
}

// Complete sends the system prompt plus ordered conversation turns to the
// model and returns the reply text with token usage. Transport and timeout
// failures are reported as ErrModelUnavailable; a well-formed but empty reply
// as ErrModelEmptyResponse.
func (c *Client) Complete(ctx context.Context, systemPrompt string, turns []models.ConversationTurn) (*models.ModelReply, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.New(callCtx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("genai.Complete: completion call failed", "error", err, "model", c.model)
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Error("genai.Complete: completion returned no content", "model", c.model)
		return nil, ErrModelEmptyResponse
	}

	reply := &models.ModelReply{
		Text: resp.Choices[0].Message.Content,
		Usage: models.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	slog.Debug("genai.Complete: completion succeeded", "model", c.model, "totalTokens", reply.Usage.TotalTokens, "replyLength", len(reply.Text))
	return reply, nil
}
