package llm

import "context"

// ThreadMessage 是服务端线程内的一条消息。
type ThreadMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ThreadClient 抽象带服务端会话状态的 Provider 线程能力。
// 仅托管型 Agent（如 Azure Foundry 风格的 assistant）具备该能力；
// 普通补全型 Agent 返回 nil。
type ThreadClient interface {
	// CreateThread 创建一个新的服务端线程并返回其 ID
	CreateThread(ctx context.Context) (string, error)

	// PostMessage 向线程追加一条用户消息
	PostMessage(ctx context.Context, threadID, content string) error

	// RunAndAwaitCompletion 在线程上执行一次推理并等待最终文本
	RunAndAwaitCompletion(ctx context.Context, threadID string) (string, error)

	// ListMessages 按时间顺序列取线程内全部消息
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}
