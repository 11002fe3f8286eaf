package groupchat

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentchat/llm"
	"github.com/BaSui01/agentchat/types"
)

// AgentKind 是封闭的 Agent 类型集合。
// 用 switch 穷举分派构造器，未支持的类型在编译期即可被发现，
// 不走字符串工厂的运行时查找。
type AgentKind int

const (
	// KindGeneric 通用补全型 Agent
	KindGeneric AgentKind = iota
	// KindPeopleLookup 组织人员检索 Agent（托管线程型）
	KindPeopleLookup
	// KindKnowledgeFinder 知识库检索 Agent（托管线程型）
	KindKnowledgeFinder
)

func (k AgentKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindPeopleLookup:
		return "people_lookup"
	case KindKnowledgeFinder:
		return "knowledge_finder"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// DefaultInstructions 返回各类型的预置系统提示词。
func (k AgentKind) DefaultInstructions() string {
	switch k {
	case KindPeopleLookup:
		return "You help find information about people in the organization."
	case KindKnowledgeFinder:
		return "You help find information from documentation and knowledge bases."
	default:
		return "You are a helpful AI assistant. Provide accurate and helpful responses."
	}
}

// Handle 是编排器眼中的一个参与者。
//
// NativeThreadClient 显式声明托管线程能力：有服务端会话状态的 Agent 返回
// 非 nil 客户端与其 endpoint，编排器据此走线程注册表；普通 Agent 返回 nil。
// 依赖写进接口，不允许跨组件掏内部字段。
type Handle interface {
	// Name 返回参与者唯一名称
	Name() string

	// Kind 返回参与者类型
	Kind() AgentKind

	// Respond 以给定上下文生成一次回复（补全型路径）
	Respond(ctx context.Context, contextPrompt string) (string, error)

	// NativeThreadClient 返回托管线程能力；不具备时 client 为 nil
	NativeThreadClient() (client llm.ThreadClient, endpoint string)
}

// providerHandle 补全型参与者：每次调用携带完整上下文。
type providerHandle struct {
	name         string
	kind         AgentKind
	instructions string
	provider     llm.Provider
	model        string
}

func (h *providerHandle) Name() string    { return h.name }
func (h *providerHandle) Kind() AgentKind { return h.kind }

func (h *providerHandle) NativeThreadClient() (llm.ThreadClient, string) { return nil, "" }

func (h *providerHandle) Respond(ctx context.Context, contextPrompt string) (string, error) {
	req := &llm.ChatRequest{
		Model: h.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: h.instructions},
			{Role: llm.RoleUser, Content: contextPrompt},
		},
	}
	resp, err := h.provider.Completion(ctx, req)
	if err != nil {
		return "", types.NewError(types.ErrProviderFailure,
			fmt.Sprintf("agent %s completion failed", h.name)).WithCause(err)
	}
	text := resp.Text()
	if text == "" {
		return "", types.NewError(types.ErrProviderFailure,
			fmt.Sprintf("agent %s returned empty response", h.name))
	}
	return text, nil
}

// hostedHandle 托管线程型参与者：回复由服务端线程执行产生。
// Respond 仅作为线程路径不可用时的兜底（例如线程创建失败后的降级）。
type hostedHandle struct {
	name     string
	kind     AgentKind
	client   llm.ThreadClient
	endpoint string
}

func (h *hostedHandle) Name() string    { return h.name }
func (h *hostedHandle) Kind() AgentKind { return h.kind }

func (h *hostedHandle) NativeThreadClient() (llm.ThreadClient, string) {
	return h.client, h.endpoint
}

func (h *hostedHandle) Respond(ctx context.Context, contextPrompt string) (string, error) {
	// 一次性线程：不经注册表，用完即弃。
	threadID, err := h.client.CreateThread(ctx)
	if err != nil {
		return "", types.NewError(types.ErrProviderFailure,
			fmt.Sprintf("agent %s ephemeral thread failed", h.name)).WithCause(err)
	}
	if err := h.client.PostMessage(ctx, threadID, contextPrompt); err != nil {
		return "", types.NewError(types.ErrProviderFailure,
			fmt.Sprintf("agent %s post failed", h.name)).WithCause(err)
	}
	return h.client.RunAndAwaitCompletion(ctx, threadID)
}
