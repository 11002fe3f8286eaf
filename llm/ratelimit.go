package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider 用令牌桶为 Provider 调用限速。
// 群聊中多个 Agent 轮流调用同一上游时，用它控制轮次推进节奏，
// 避免触发上游限流。
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider 包装 Provider，rps 为每秒请求数，burst 为突发容量。
func NewRateLimitedProvider(inner Provider, rps float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (p *RateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Completion(ctx, req)
}

func (p *RateLimitedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }
