package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 1
)

// Resilient wraps a Provider with a per-attempt timeout, a bounded number of
// retries for transient failures and an optional rate limit.
type Resilient struct {
	next       Provider
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ResilientOption configures a Resilient provider.
type ResilientOption func(*Resilient)

// WithTimeout bounds every attempt. Zero disables the per-attempt timeout.
func WithTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		r.timeout = d
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) ResilientOption {
	return func(r *Resilient) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithRateLimit allows at most perSecond calls per second, bursting to burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) ResilientOption {
	return func(r *Resilient) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *slog.Logger) ResilientOption {
	return func(r *Resilient) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResilient wraps next.
func NewResilient(next Provider, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:       next,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Chat implements Provider.
func (r *Resilient) Chat(ctx context.Context, messages []Message, opts ...CallOption) (*Message, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := r.attempt(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			break
		}
		if attempt < r.maxRetries {
			r.logger.Warn("retrying llm call after transient failure", "attempt", attempt+1, "error", err)
		}
	}
	return nil, lastErr
}

func (r *Resilient) attempt(ctx context.Context, messages []Message, opts []CallOption) (*Message, error) {
	if r.timeout <= 0 {
		return r.next.Chat(ctx, messages, opts...)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.next.Chat(attemptCtx, messages, opts...)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: attempt timed out after %s: %w", ErrTransient, r.timeout, err)
	}
	return resp, err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
