package groupchat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/agentchat/llm"
)

// scriptedProvider returns canned completions in order and records every
// request it sees. Safe for concurrent use.
type scriptedProvider struct {
	name    string
	replies []string
	err     error

	mu       sync.Mutex
	requests []*llm.ChatRequest
	calls    atomic.Int64
}

func newScriptedProvider(name string, replies ...string) *scriptedProvider {
	return &scriptedProvider{name: name, replies: replies}
}

func (p *scriptedProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	n := p.calls.Add(1)
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	reply := fmt.Sprintf("%s reply %d", p.name, n)
	if len(p.replies) > 0 {
		idx := int(n-1) % len(p.replies)
		reply = p.replies[idx]
	}
	return &llm.ChatResponse{
		Model: req.Model,
		Choices: []llm.ChatChoice{
			{Message: llm.Message{Role: llm.RoleAssistant, Content: reply}},
		},
	}, nil
}

func (p *scriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) lastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}
