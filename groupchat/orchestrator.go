package groupchat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentchat/internal/metrics"
	"github.com/BaSui01/agentchat/session"
	"github.com/BaSui01/agentchat/thread"
	"github.com/BaSui01/agentchat/types"
)

// RunRequest 一次群聊编排请求。
type RunRequest struct {
	// ConversationID 会话标识；为空时生成新会话。
	// 同一 ConversationID 的多次 Run 共享外部线程与会话日志。
	ConversationID string

	// Seed 用户话题（必填）
	Seed string

	// Participants 参与者名单，按此顺序轮流发言（必填）
	Participants []string

	// MaxTurns 每个参与者的发言轮数上限（必填，硬上限）
	MaxTurns int

	// Policy 终止策略；为 nil 时使用固定轮次策略
	Policy TerminationPolicy
}

// RunResult 一次群聊编排结果。
type RunResult struct {
	ConversationID string
	Messages       []types.Message
	Summary        string

	// TerminationCause 为 "policy"（策略判定）或 "ceiling"（硬上限）
	TerminationCause string

	// Degraded 主循环失败、由固定轮次兜底跑完时为 true
	Degraded bool
}

// Option 编排器可选配置。
type Option func(*Orchestrator)

// WithMetrics 接入指标收集器。
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger 指定日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// Orchestrator 串行轮转编排器。
//
// 单条会话内严格串行：同一时刻只有一个 Agent 在发言；不同会话的 Run
// 可以并发进行，会话日志与线程注册表各自负责自己的并发安全。
type Orchestrator struct {
	agents     *AgentRegistry
	store      session.Store
	threads    *thread.Registry
	summarizer *Summarizer
	metrics    *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewOrchestrator 创建编排器。summarizer 可为 nil（不生成摘要）。
func NewOrchestrator(agents *AgentRegistry, store session.Store, threads *thread.Registry, summarizer *Summarizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agents:     agents,
		store:      store,
		threads:    threads,
		summarizer: summarizer,
		tracer:     otel.Tracer("agentchat/groupchat"),
		logger:     zap.NewNop(),
	}
	if o.threads == nil {
		o.threads = thread.NewRegistry(nil)
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	return o
}

// Run 执行一次群聊编排：写入种子消息，按名单轮流推进 Agent 轮次，
// 每轮次后询问终止策略，结束后生成摘要。
//
// 无法解析的参与者被跳过并告警；一个都解析不到时返回
// types.ErrNoAgentsAvailable。主循环 panic 或出错时降级为固定轮次
// 兜底重跑，已收集的消息全部保留。
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	ctx, span := o.tracer.Start(ctx, "groupchat.run",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("participants.requested", len(req.Participants)),
			attribute.Int("max_turns", req.MaxTurns),
		))
	defer span.End()

	logger := o.logger.With(zap.String("conversation_id", conversationID))
	started := time.Now()

	// 解析参与者，缺失的跳过并告警，顺序保持与名单一致。
	roster := make([]Handle, 0, len(req.Participants))
	for _, name := range req.Participants {
		h, ok := o.agents.Resolve(name)
		if !ok {
			logger.Warn("participant not registered, skipping",
				zap.String("agent", name),
			)
			if o.metrics != nil {
				o.metrics.RecordAgentSkip(name, "unresolved")
			}
			continue
		}
		roster = append(roster, h)
	}
	if len(roster) == 0 {
		return nil, types.ErrNoAgentsAvailable
	}

	policy := req.Policy
	if policy == nil {
		policy = NewFixedCountPolicy(req.MaxTurns, len(roster))
	}

	if err := o.appendSeed(ctx, conversationID, req.Seed); err != nil {
		return nil, err
	}

	result := &RunResult{ConversationID: conversationID}

	// effective 记录实际决定终止的策略，兜底重跑后指向兜底策略。
	effective := policy

	cause, err := o.runRounds(ctx, conversationID, roster, policy, req.Seed, req.MaxTurns)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}

		// 主循环失败：固定轮次兜底重跑剩余轮次，已收集消息保留在会话日志中。
		logger.Warn("primary loop failed, engaging fixed-count fallback",
			zap.String("policy", policy.Name()),
			zap.Error(err),
		)
		if o.metrics != nil {
			o.metrics.RecordFallbackActivation()
		}
		result.Degraded = true

		fallback := NewFixedCountPolicy(req.MaxTurns, len(roster))
		effective = fallback
		cause, err = o.runRounds(ctx, conversationID, roster, fallback, req.Seed, req.MaxTurns)
		if err != nil {
			return nil, types.NewError(types.ErrFallbackEngaged,
				"fixed-count fallback failed after primary loop failure").WithCause(err)
		}
	}
	result.TerminationCause = cause
	if o.metrics != nil {
		o.metrics.RecordTermination(effective.Name(), cause)
	}

	final, err := o.store.Read(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	result.Messages = final

	if o.summarizer != nil {
		result.Summary = o.summarizer.Summarize(ctx, final)
		if o.metrics != nil {
			o.metrics.RecordSummary(summaryOutcome(result.Summary))
		}
	}

	status := "completed"
	if result.Degraded {
		status = "fallback"
	}
	if o.metrics != nil {
		o.metrics.RecordConversation(status, effective.Name(), time.Since(started))
	}
	logger.Info("group chat completed",
		zap.Int("messages", len(result.Messages)),
		zap.String("termination_cause", result.TerminationCause),
		zap.Bool("degraded", result.Degraded),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func validateRequest(req RunRequest) error {
	switch {
	case req.Seed == "":
		return types.NewError(types.ErrInvalidRunRequest, "seed message is required")
	case len(req.Participants) == 0:
		return types.NewError(types.ErrInvalidRunRequest, "at least one participant is required")
	case req.MaxTurns <= 0:
		return types.NewError(types.ErrInvalidRunRequest, "max turns must be positive")
	}
	return nil
}

// appendSeed 写入用户种子消息。新会话从轮次 0 开始，续聊接在既有轮次之后。
func (o *Orchestrator) appendSeed(ctx context.Context, conversationID, seed string) error {
	history, err := o.store.Read(ctx, conversationID)
	if err != nil {
		return err
	}

	msg := types.NewSeedMessage(seed)
	msg.ID = uuid.NewString()
	if len(history) > 0 {
		msg.Turn = history[len(history)-1].Turn + 1
	}
	return o.store.Append(ctx, conversationID, msg)
}

// runRounds 推进最多 maxTurns 轮轮转。返回终止原因："policy" 或 "ceiling"。
// 内部 panic 被捕获并作为错误返回，由调用方决定是否兜底。
func (o *Orchestrator) runRounds(ctx context.Context, conversationID string, roster []Handle, policy TerminationPolicy, seed string, maxTurns int) (cause string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestration loop panicked: %v", r)
		}
	}()

	logger := o.logger.With(zap.String("conversation_id", conversationID))

	for round := 1; round <= maxTurns; round++ {
		for _, h := range roster {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			history, err := o.store.Read(ctx, conversationID)
			if err != nil {
				return "", err
			}
			agentsSoFar := types.AgentMessages(history)

			// 上限已满时立即停，不再多给本轮剩余参与者机会。
			if len(agentsSoFar) >= maxTurns*len(roster) {
				return "ceiling", nil
			}

			turnStart := time.Now()
			content, err := o.takeTurn(ctx, conversationID, h, seed, history)
			if err != nil {
				logger.Warn("agent turn failed, skipping",
					zap.String("agent", h.Name()),
					zap.Int("round", round),
					zap.Error(err),
				)
				if o.metrics != nil {
					o.metrics.RecordAgentSkip(h.Name(), "respond_failed")
				}
				continue
			}

			turn := 1
			if len(history) > 0 {
				turn = history[len(history)-1].Turn + 1
			}
			msg := types.NewAgentMessage(h.Name(), content, turn).
				WithMetadata(map[string]any{"round": round})
			msg.ID = uuid.NewString()
			if err := o.store.Append(ctx, conversationID, msg); err != nil {
				return "", err
			}
			if o.metrics != nil {
				o.metrics.RecordAgentTurn(h.Name(), h.Kind().String(), time.Since(turnStart))
			}

			// 每个 Agent 轮次之后都询问一次策略，允许轮中停。
			agentsSoFar = append(agentsSoFar, msg)
			decision, reason := policy.ShouldTerminate(ctx, agentsSoFar)
			if decision == DecisionTerminate {
				logger.Info("termination policy fired",
					zap.String("policy", policy.Name()),
					zap.Int("round", round),
					zap.String("reason", reason),
				)
				return "policy", nil
			}
		}
	}
	return "ceiling", nil
}

// takeTurn 执行单个 Agent 轮次。
// 具备托管线程能力的 Agent 走线程注册表（服务端保留其既往上下文）；
// 线程路径失败时降级到一次性 Respond；普通 Agent 直接 Respond。
func (o *Orchestrator) takeTurn(ctx context.Context, conversationID string, h Handle, seed string, history []types.Message) (string, error) {
	prompt := BuildContext(h.Name(), seed, history)

	client, endpoint := h.NativeThreadClient()
	if client == nil {
		return h.Respond(ctx, prompt)
	}

	key := thread.Key{
		Endpoint:       endpoint,
		AgentID:        h.Name(),
		ConversationID: conversationID,
	}
	threadID, err := o.threads.GetOrCreate(ctx, key, client, history)
	if err == nil {
		if err = client.PostMessage(ctx, threadID, prompt); err == nil {
			return client.RunAndAwaitCompletion(ctx, threadID)
		}
	}

	o.logger.Warn("hosted thread path failed, falling back to one-shot respond",
		zap.String("agent", h.Name()),
		zap.String("conversation_id", conversationID),
		zap.Error(err),
	)
	return h.Respond(ctx, prompt)
}

func summaryOutcome(summary string) string {
	switch {
	case summary == SummaryNotAvailable:
		return "skipped"
	case strings.HasPrefix(summary, degradedSummaryMarker):
		return "degraded"
	default:
		return "generated"
	}
}
