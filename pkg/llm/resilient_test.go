package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	errs     []error
	reply    string
	delay    time.Duration
	calls    int
	lastOpts CallOptions
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []Message, opts ...CallOption) (*Message, error) {
	p.calls++
	p.lastOpts = ApplyCallOptions(opts...)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Message{Role: RoleAssistant, Content: p.reply}, nil
}

func TestComplete(t *testing.T) {
	p := &scriptedProvider{reply: "  hello \n"}
	text, err := Complete(context.Background(), p, "prompt", 42)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 42, p.lastOpts.MaxTokens)
}

func TestComplete_EmptyReply(t *testing.T) {
	p := &scriptedProvider{reply: "   "}
	_, err := Complete(context.Background(), p, "prompt", 10)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestResilient_RetriesTransientOnce(t *testing.T) {
	p := &scriptedProvider{
		errs:  []error{fmt.Errorf("%w: 503", ErrTransient)},
		reply: "ok",
	}
	r := NewResilient(p)

	msg, err := r.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, 2, p.calls)
}

func TestResilient_GivesUpAfterRetry(t *testing.T) {
	p := &scriptedProvider{
		errs: []error{
			fmt.Errorf("%w: 503", ErrTransient),
			fmt.Errorf("%w: 503", ErrTransient),
			nil,
		},
	}
	r := NewResilient(p)

	_, err := r.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestResilient_PermanentErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("invalid api key")}}
	r := NewResilient(p, WithMaxRetries(3))

	_, err := r.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestResilient_AttemptTimeoutIsTransient(t *testing.T) {
	p := &scriptedProvider{delay: 200 * time.Millisecond, reply: "late"}
	r := NewResilient(p, WithTimeout(20*time.Millisecond), WithMaxRetries(1))

	_, err := r.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 2, p.calls)
}

func TestResilient_RateLimitHonoursContext(t *testing.T) {
	p := &scriptedProvider{reply: "ok"}
	r := NewResilient(p, WithRateLimit(0.001, 1))

	_, err := r.Chat(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = r.Chat(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}
