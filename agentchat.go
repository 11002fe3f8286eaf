// Package agentchat provides a top-level convenience entry point for building
// a multi-agent group chat with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/agentchat"
//
//	chat, err := agentchat.New(
//	    agentchat.WithAgent("researcher", myProvider),
//	    agentchat.WithAgent("planner", myProvider),
//	)
//	result, err := chat.Run(ctx, groupchat.RunRequest{
//	    Seed:         "plan the offsite",
//	    Participants: []string{"researcher", "planner"},
//	    MaxTurns:     3,
//	})
//
// The returned orchestrator uses an in-memory session store and an empty
// thread registry. Assemble the pieces from groupchat/, session/ and thread/
// directly when you need a shared store or hosted agents.
package agentchat

import (
	"go.uber.org/zap"

	"github.com/BaSui01/agentchat/groupchat"
	"github.com/BaSui01/agentchat/llm"
	"github.com/BaSui01/agentchat/session"
	"github.com/BaSui01/agentchat/thread"
)

type builder struct {
	specs      []groupchat.AgentSpec
	summarizer llm.Provider
	logger     *zap.Logger
}

// Option configures the orchestrator created by [New].
type Option func(*builder)

// WithAgent registers a completion-backed participant.
func WithAgent(name string, provider llm.Provider) Option {
	return func(b *builder) {
		b.specs = append(b.specs, groupchat.AgentSpec{
			Name:     name,
			Kind:     groupchat.KindGeneric,
			Provider: provider,
		})
	}
}

// WithAgentSpec registers a fully specified participant.
func WithAgentSpec(spec groupchat.AgentSpec) Option {
	return func(b *builder) { b.specs = append(b.specs, spec) }
}

// WithSummarizer enables post-chat summaries using the given provider.
func WithSummarizer(provider llm.Provider) Option {
	return func(b *builder) { b.summarizer = provider }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *builder) { b.logger = logger }
}

// New creates a ready-to-run [groupchat.Orchestrator] with an in-memory
// session store. At least one agent must be registered.
func New(opts ...Option) (*groupchat.Orchestrator, error) {
	b := &builder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	registry := groupchat.NewAgentRegistry(b.logger)
	for _, spec := range b.specs {
		if err := registry.Register(spec); err != nil {
			return nil, err
		}
	}

	var summarizer *groupchat.Summarizer
	if b.summarizer != nil {
		summarizer = groupchat.NewSummarizer(b.summarizer, groupchat.SummarizerConfig{}, b.logger)
	}

	store := session.NewMemoryStore(session.DefaultConfig(), b.logger)
	threads := thread.NewRegistry(b.logger)
	return groupchat.NewOrchestrator(registry, store, threads, summarizer,
		groupchat.WithLogger(b.logger)), nil
}
