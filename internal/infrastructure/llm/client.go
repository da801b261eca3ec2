// Package llm adapts generative model providers to domain.ModelClient.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"github.com/chatcart/backend/internal/platform/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout           = 30 * time.Second
	defaultMaxRetries        = 2
	defaultRequestsPerSecond = 5
	defaultBurst             = 10
	baseBackoff              = 500 * time.Millisecond
)

// completer is a single raw call to a model provider
type completer interface {
	complete(ctx context.Context, prompt string, image *domain.Image) (string, error)
}

// ClientConfig holds transport settings shared by every provider
type ClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
}

// Client wraps a provider with rate limiting, retries, per-call timeouts and metrics
type Client struct {
	provider    completer
	name        string
	rateLimiter *rate.Limiter
	timeout     time.Duration
	maxRetries  int
	backoff     func(attempt int) time.Duration
	logger      *zap.Logger
}

func newClient(name string, provider completer, config ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxRetries := config.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := config.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Client{
		provider:    provider,
		name:        name,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		timeout:     timeout,
		maxRetries:  maxRetries,
		backoff:     exponentialBackoff,
		logger:      logger.With(zap.String("provider", name)),
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// Complete sends the prompt to the provider and returns the completion text.
// Transient failures (timeouts, 429, 5xx) are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, prompt string, image *domain.Image) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %w: %v", domain.ErrModelUnavailable, domain.ErrRateLimited, err)
		}

		text, err := c.completeOnce(ctx, prompt, image)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil || attempt > c.maxRetries {
			break
		}

		delay := c.backoff(attempt)
		c.logger.Warn("model request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", domain.ErrModelUnavailable, ctx.Err())
		case <-time.After(delay):
		}
	}

	c.logger.Error("model request failed", zap.Error(lastErr))
	if errors.Is(lastErr, domain.ErrModelUnavailable) || errors.Is(lastErr, domain.ErrModelResponse) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %v", domain.ErrModelUnavailable, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, prompt string, image *domain.Image) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.provider.complete(callCtx, prompt, image)
	if err == nil && strings.TrimSpace(text) == "" {
		err = domain.ErrModelResponse
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ModelRequestDuration.WithLabelValues(c.name, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", err
	}

	c.logger.Debug("model request succeeded",
		zap.Duration("duration", time.Since(start)),
		zap.Int("promptBytes", len(prompt)),
		zap.Bool("image", image != nil))
	return text, nil
}

// statusError carries the HTTP status a provider answered with
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.status, e.err)
}

func (e *statusError) Unwrap() error {
	return e.err
}

// isRetryable reports whether a provider error is worth another attempt
func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrModelResponse) || errors.Is(err, context.Canceled) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= http.StatusInternalServerError
	}

	// Network errors and per-call timeouts
	return true
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return baseBackoff * time.Duration(1<<(attempt-1))
}
