// Package models defines data structures for the counseling conversation controller.
package models

import (
	"errors"
	"time"
)

// ConversationRole identifies the author of a conversation turn.
type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// isValidConversationRole checks if the role is valid.
func isValidConversationRole(role ConversationRole) bool {
	switch role {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// ConversationTurn is a single message in a session. Insertion order is
// significant; recent turns form the sliding window used for stage assessment
// and risk-history scoring.
type ConversationTurn struct {
	ID        string           `json:"id,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Role      ConversationRole `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
}

// UserProfile holds the optional background folded into prompts.
type UserProfile struct {
	Age           int    `json:"age,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	PriorSessions int    `json:"prior_sessions,omitempty"`
}

// Session is the durable context of one counseling conversation.
type Session struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	IssueTags []string     `json:"issue_tags,omitempty"` // current-issue tags, e.g. "anxiety", "sleep"
	Profile   *UserProfile `json:"profile,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TokenUsage reports model token consumption for one completion call.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ModelReply is the result of one external model completion.
type ModelReply struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
}

// Validation constants
const (
	MaxMessageLength = 2000
)

// Error variables for validation
var (
	ErrEmptyMessage   = errors.New("message content is empty")
	ErrMessageTooLong = errors.New("message content too long")
	ErrInvalidRole    = errors.New("invalid conversation role")
	ErrMissingSession = errors.New("session id is required")
)

// Validate validates a ConversationTurn before persistence.
func (t *ConversationTurn) Validate() error {
	if t.SessionID == "" {
		return ErrMissingSession
	}
	if t.Content == "" {
		return ErrEmptyMessage
	}
	if len(t.Content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !isValidConversationRole(t.Role) {
		return ErrInvalidRole
	}
	return nil
}
