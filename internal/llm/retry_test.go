package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type flakyModel struct {
	failuresBeforeSuccess int
	err                   error
	calls                 int
}

func (m *flakyModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.calls <= m.failuresBeforeSuccess {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}, nil
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BackoffFactor:   2.0,
		TimeoutPerRetry: time.Second,
	}
}

func TestRetryModelRecoversFromTransientFailure(t *testing.T) {
	inner := &flakyModel{failuresBeforeSuccess: 2, err: errors.New("connection reset by peer")}
	wrapper := NewRetryModelWithConfig(inner, fastConfig(), zerolog.Nop())

	resp, err := wrapper.GenerateContent(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Choices[0].Content)
	require.Equal(t, 3, inner.calls)
}

func TestRetryModelStopsOnNonRetryableError(t *testing.T) {
	inner := &flakyModel{failuresBeforeSuccess: 99, err: errors.New("invalid api key")}
	wrapper := NewRetryModelWithConfig(inner, fastConfig(), zerolog.Nop())

	_, err := wrapper.GenerateContent(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, 1, inner.calls)
}

func TestRetryModelExhaustsRetriesThenFails(t *testing.T) {
	inner := &flakyModel{failuresBeforeSuccess: 99, err: errors.New("503 service unavailable")}
	wrapper := NewRetryModelWithConfig(inner, fastConfig(), zerolog.Nop())

	_, err := wrapper.GenerateContent(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, fastConfig().MaxRetries+1, inner.calls)
}
