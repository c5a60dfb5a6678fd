package llm

import (
	"context"
	"errors"
	"strings"
)

// Role represents the role of the message sender (system, user, assistant).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	// ErrTransient marks a failure worth retrying (rate limiting, 5xx, network timeouts).
	ErrTransient = errors.New("llm: transient failure")
	// ErrEmptyResponse is returned when the model produced no choices or no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Message represents a single message in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CallOptions holds per-call generation settings.
type CallOptions struct {
	// MaxTokens caps the number of output tokens. Zero leaves the provider default.
	MaxTokens int
}

// CallOption configures a single Chat call.
type CallOption func(*CallOptions)

// WithMaxTokens caps the number of output tokens for the call.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = n
	}
}

// ApplyCallOptions folds opts into a CallOptions value.
func ApplyCallOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Provider defines the interface for an LLM provider.
type Provider interface {
	// Chat sends a list of messages to the LLM and returns the response.
	Chat(ctx context.Context, messages []Message, opts ...CallOption) (*Message, error)
}

// Complete sends prompt as a single user message and returns the trimmed
// text of the reply.
func Complete(ctx context.Context, p Provider, prompt string, maxTokens int) (string, error) {
	resp, err := p.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, WithMaxTokens(maxTokens))
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
