package llm

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
)

// RetryConfig configures RetryModel's backoff between GenerateContent
// attempts.
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	TimeoutPerRetry time.Duration
}

// DefaultRetryConfig allows up to three attempts (two retries) of at most
// 20s each, with 500ms and then 1s of backoff between them, so a single
// call takes at most about 61.5s before it fails.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        4 * time.Second,
		BackoffFactor:   2.0,
		TimeoutPerRetry: 20 * time.Second,
	}
}

// RetryModel wraps an llms.Model with exponential-backoff retry over
// transient failures, so a brief DeepSeek rate-limit or network blip
// doesn't surface as a clarify_error on the whole turn.
type RetryModel struct {
	inner  llms.Model
	config RetryConfig
	log    zerolog.Logger
}

// NewRetryModel wraps model with DefaultRetryConfig.
func NewRetryModel(model llms.Model, log zerolog.Logger) *RetryModel {
	return &RetryModel{inner: model, config: DefaultRetryConfig(), log: log}
}

// NewRetryModelWithConfig wraps model with a caller-supplied RetryConfig.
func NewRetryModelWithConfig(model llms.Model, config RetryConfig, log zerolog.Logger) *RetryModel {
	return &RetryModel{inner: model, config: config, log: log}
}

// GenerateContent calls the wrapped model, retrying retryable failures
// with exponential backoff up to config.MaxRetries times.
func (w *RetryModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var lastErr error
	delay := w.config.InitialDelay

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("llm: context cancelled before attempt %d: %w", attempt+1, ctx.Err())
		default:
		}

		attemptCtx, cancel := context.WithTimeout(ctx, w.config.TimeoutPerRetry)
		resp, err := w.inner.GenerateContent(attemptCtx, messages, options...)
		cancel()

		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt >= w.config.MaxRetries || !isRetryableError(err) {
			break
		}

		w.log.Warn().Err(err).Int("attempt", attempt+1).Dur("retry_in", delay).Msg("llm call failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("llm: context cancelled during retry delay: %w", ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * w.config.BackoffFactor)
		if delay > w.config.MaxDelay {
			delay = w.config.MaxDelay
		}
	}

	return nil, fmt.Errorf("llm: call failed after %d attempt(s): %w", w.config.MaxRetries+1, lastErr)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())

	for _, token := range []string{
		"context canceled", "context cancelled", "context deadline exceeded",
		"connection refused", "connection reset", "connection timeout",
		"timeout", "no such host", "network is unreachable", "temporary failure",
		"500", "502", "503", "504", "429",
		"rate limit", "overloaded", "server error", "service unavailable", "dns",
	} {
		if strings.Contains(errStr, token) {
			return true
		}
	}

	if netErr, ok := err.(net.Error); ok {
		return netErr.Timeout()
	}
	if urlErr, ok := err.(*url.Error); ok {
		return isRetryableError(urlErr.Err)
	}
	return false
}
