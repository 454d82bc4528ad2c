package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type RetryConfig struct {
	RequestsPerSecond float64
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

// RetryingProvider paces calls through a token bucket and retries
// rate-limited failures with exponential backoff. Other errors are returned
// on the first attempt.
type RetryingProvider struct {
	inner       Provider
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *logger_i.Logger
}

func NewRetryingProvider(inner Provider, cfg RetryConfig) *RetryingProvider {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &RetryingProvider{
		inner:       inner,
		limiter:     rate.NewLimiter(limit, 1),
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		logger:      logger_i.NewLogger("llm_retry"),
	}
}

func (p *RetryingProvider) Name() string {
	return p.inner.Name()
}

func (p *RetryingProvider) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm pacing: %w", err)
		}

		out, err := p.inner.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		retryAfter, limited := RateLimited(err)
		if !limited {
			return "", err
		}
		lastErr = err
		if attempt == p.maxAttempts-1 {
			break
		}

		delay := p.backoff(attempt, retryAfter)
		p.logger.WithContext(ctx).Warn("llm_rate_limited", "provider", p.inner.Name(), "attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("giving up after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *RetryingProvider) backoff(attempt int, retryAfter time.Duration) time.Duration {
	delay := p.baseDelay << attempt
	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}
	if jitter := int64(delay) / 4; jitter > 0 {
		delay += time.Duration(rand.Int64N(jitter))
	}
	if retryAfter > delay {
		delay = retryAfter
	}
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}

// RateLimited reports whether err is a 429-class failure and the provider's
// retry hint, if any.
func RateLimited(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	if status.Code(err) == codes.ResourceExhausted {
		return 0, true
	}
	return 0, false
}
