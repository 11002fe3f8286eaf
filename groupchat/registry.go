package groupchat

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agentchat/llm"
)

// AgentSpec 声明一个待注册的参与者。
type AgentSpec struct {
	// Name 参与者唯一名称，不得使用保留的 "user"
	Name string

	// Kind 参与者类型（封闭枚举）
	Kind AgentKind

	// Instructions 系统提示词，为空时使用 Kind 的预置提示词
	Instructions string

	// Model 模型名（仅补全型使用）
	Model string

	// Provider 补全能力（KindGeneric 必填）
	Provider llm.Provider

	// ThreadClient 与 Endpoint 托管线程能力（托管型必填）
	ThreadClient llm.ThreadClient
	Endpoint     string
}

// AgentRegistry 持有已注册的参与者句柄。
// 注册发生在启动期，Resolve 在编排期被并发调用。
type AgentRegistry struct {
	mu      sync.RWMutex
	handles map[string]Handle
	logger  *zap.Logger
}

// NewAgentRegistry 创建空注册表。
func NewAgentRegistry(logger *zap.Logger) *AgentRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentRegistry{
		handles: make(map[string]Handle),
		logger:  logger.With(zap.String("component", "agent_registry")),
	}
}

// Register 按 Kind 穷举构造句柄并注册。
func (r *AgentRegistry) Register(spec AgentSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if spec.Name == "user" {
		return fmt.Errorf("agent name %q is reserved", spec.Name)
	}

	instructions := spec.Instructions
	if instructions == "" {
		instructions = spec.Kind.DefaultInstructions()
	}

	var h Handle
	switch spec.Kind {
	case KindGeneric:
		if spec.Provider == nil {
			return fmt.Errorf("agent %s: kind %s requires a provider", spec.Name, spec.Kind)
		}
		h = &providerHandle{
			name:         spec.Name,
			kind:         spec.Kind,
			instructions: instructions,
			provider:     spec.Provider,
			model:        spec.Model,
		}
	case KindPeopleLookup, KindKnowledgeFinder:
		if spec.ThreadClient == nil {
			return fmt.Errorf("agent %s: kind %s requires a thread client", spec.Name, spec.Kind)
		}
		h = &hostedHandle{
			name:     spec.Name,
			kind:     spec.Kind,
			client:   spec.ThreadClient,
			endpoint: spec.Endpoint,
		}
	default:
		return fmt.Errorf("agent %s: unsupported kind %s", spec.Name, spec.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[spec.Name]; exists {
		return fmt.Errorf("agent %s already registered", spec.Name)
	}
	r.handles[spec.Name] = h
	r.logger.Info("agent registered",
		zap.String("agent", spec.Name),
		zap.String("kind", spec.Kind.String()),
	)
	return nil
}

// RegisterHandle 直接注册一个现成句柄（测试与自定义实现用）。
func (r *AgentRegistry) RegisterHandle(h Handle) error {
	if h == nil || h.Name() == "" {
		return fmt.Errorf("handle with a name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h.Name()]; exists {
		return fmt.Errorf("agent %s already registered", h.Name())
	}
	r.handles[h.Name()] = h
	return nil
}

// Resolve 按名称查找句柄。
func (r *AgentRegistry) Resolve(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// Names 返回全部已注册名称。
func (r *AgentRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handles))
	for name := range r.handles {
		out = append(out, name)
	}
	return out
}
