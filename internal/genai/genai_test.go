package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// The real completion service must satisfy the interface the client holds.
var _ completionService = (*openai.ChatCompletionService)(nil)

// mockCompletionService records the last request and returns a canned
// response or error.
type mockCompletionService struct {
	lastParams openai.ChatCompletionNewParams
	resp       *openai.ChatCompletion
	err        error
}

func (m *mockCompletionService) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.lastParams = body
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func newTestClient(mock *mockCompletionService) *Client {
	return &Client{chat: mock, model: openai.ChatModelGPT4oMini, timeout: time.Second}
}

func TestCompleteSuccess(t *testing.T) {
	mock := &mockCompletionService{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "I hear you."}},
			},
			Usage: openai.CompletionUsage{PromptTokens: 120, CompletionTokens: 18, TotalTokens: 138},
		},
	}
	c := newTestClient(mock)

	turns := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "I have been feeling stressed"},
		{Role: models.RoleAssistant, Content: "Tell me more about that."},
		{Role: models.RoleUser, Content: "It is mostly about work"},
	}
	reply, err := c.Complete(context.Background(), "You are a counselor.", turns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "I hear you." {
		t.Errorf("expected reply text, got %q", reply.Text)
	}
	if reply.Usage.TotalTokens != 138 {
		t.Errorf("expected 138 total tokens, got %d", reply.Usage.TotalTokens)
	}
	// System prompt plus three turns.
	if len(mock.lastParams.Messages) != 4 {
		t.Errorf("expected 4 messages sent, got %d", len(mock.lastParams.Messages))
	}
}

func TestCompleteNoSystemPrompt(t *testing.T) {
	mock := &mockCompletionService{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "ok"}},
			},
		},
	}
	c := newTestClient(mock)

	if _, err := c.Complete(context.Background(), "", []models.ConversationTurn{{Role: models.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.lastParams.Messages) != 1 {
		t.Errorf("expected 1 message without system prompt, got %d", len(mock.lastParams.Messages))
	}
}

func TestCompleteTransportFailure(t *testing.T) {
	mock := &mockCompletionService{err: errors.New("connection refused")}
	c := newTestClient(mock)

	_, err := c.Complete(context.Background(), "prompt", []models.ConversationTurn{{Role: models.RoleUser, Content: "hi"}})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	cases := []struct {
		name string
		resp *openai.ChatCompletion
	}{
		{"no choices", &openai.ChatCompletion{}},
		{"empty content", &openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: ""}}}}},
	}
	for _, tc := range cases {
		mock := &mockCompletionService{resp: tc.resp}
		c := newTestClient(mock)
		_, err := c.Complete(context.Background(), "prompt", []models.ConversationTurn{{Role: models.RoleUser, Content: "hi"}})
		if !errors.Is(err, ErrModelEmptyResponse) {
			t.Errorf("%s: expected ErrModelEmptyResponse, got %v", tc.name, err)
		}
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNewClientWithOptions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(c.model) != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", c.model)
	}
	if c.timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", c.timeout)
	}
}

func TestNewClientDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	c, err := NewClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.model != openai.ChatModelGPT4oMini {
		t.Errorf("expected default model, got %s", c.model)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %s", c.timeout)
	}
}
