package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls atomic.Int32
}

func (p *countingProvider) Completion(_ context.Context, _ *ChatRequest) (*ChatResponse, error) {
	p.calls.Add(1)
	return &ChatResponse{Choices: []ChatChoice{{Message: Message{Role: RoleAssistant, Content: "ok"}}}}, nil
}

func (p *countingProvider) HealthCheck(context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (p *countingProvider) Name() string { return "counting" }

func TestRateLimitedProvider_PassesThrough(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{}
	p := NewRateLimitedProvider(inner, 100, 1)

	resp, err := p.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, "counting", p.Name())
}

func TestRateLimitedProvider_HonorsCancellation(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{}
	// 1 req per 10s: the second call must block until the context dies.
	p := NewRateLimitedProvider(inner, 0.1, 1)

	_, err := p.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Completion(ctx, &ChatRequest{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestChatResponse_Text(t *testing.T) {
	t.Parallel()

	var nilResp *ChatResponse
	assert.Equal(t, "", nilResp.Text())
	assert.Equal(t, "", (&ChatResponse{}).Text())
}
