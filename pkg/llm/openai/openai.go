package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/barekit/dossier/pkg/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// Provider implements llm.Provider on top of any OpenAI-compatible chat endpoint.
type Provider struct {
	client *openai.Client
	model  string
}

// New creates a Provider. SDK-level retries are disabled so that retry policy
// lives in llm.Resilient; callers may still override it through opts.
func New(opts ...option.RequestOption) *Provider {
	all := append([]option.RequestOption{option.WithMaxRetries(0)}, opts...)
	client := openai.NewClient(all...)
	return &Provider{
		client: &client,
		model:  DefaultModel,
	}
}

// SetModel sets the model to use.
func (p *Provider) SetModel(model string) {
	if model != "" {
		p.model = model
	}
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.model
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Message, error) {
	openaiMessages, err := buildMessages(messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Messages: openaiMessages,
		Model:    p.model,
	}
	if o := llm.ApplyCallOptions(opts...); o.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	return &llm.Message{
		Role:    llm.RoleAssistant,
		Content: completion.Choices[0].Message.Content,
	}, nil
}

func buildMessages(messages []llm.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	openaiMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			openaiMessages[i] = openai.SystemMessage(msg.Content)
		case llm.RoleUser:
			openaiMessages[i] = openai.UserMessage(msg.Content)
		case llm.RoleAssistant:
			openaiMessages[i] = openai.AssistantMessage(msg.Content)
		default:
			return nil, fmt.Errorf("unknown role: %s", msg.Role)
		}
	}
	return openaiMessages, nil
}

// classify tags rate limiting and server errors as transient.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", llm.ErrTransient, err)
		}
		return fmt.Errorf("openai chat: %w", err)
	}
	if llm.IsTransient(err) {
		return err
	}
	return fmt.Errorf("openai chat: %w", err)
}
