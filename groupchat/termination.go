package groupchat

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/BaSui01/agentchat/internal/metrics"
	"github.com/BaSui01/agentchat/llm"
	"github.com/BaSui01/agentchat/types"
)

// Decision 终止决策，每个 Agent 轮次产生一次，从不持久化。
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionTerminate
)

func (d Decision) String() string {
	if d == DecisionTerminate {
		return "terminate"
	}
	return "continue"
}

// PolicyKind 标识终止策略变体（配置用）。
type PolicyKind string

const (
	PolicyFixedCount  PolicyKind = "fixed_count"
	PolicyConvergence PolicyKind = "convergence"
)

// TerminationPolicy 在每个 Agent 轮次之后被询问一次（不只是轮末）。
// 策略自身不会让编排失败：任何内部错误都折算为 continue。
type TerminationPolicy interface {
	Name() string
	ShouldTerminate(ctx context.Context, agentMessages []types.Message) (Decision, string)
}

// ---------------------------------------------------------------------------
// 固定轮次策略
// ---------------------------------------------------------------------------

// FixedCountPolicy 在 Agent 消息数达到 maxTurns*participantCount 时终止。
// 确定性、无副作用。
type FixedCountPolicy struct {
	limit int
}

// NewFixedCountPolicy 创建固定轮次策略。
func NewFixedCountPolicy(maxTurns, participantCount int) *FixedCountPolicy {
	return &FixedCountPolicy{limit: maxTurns * participantCount}
}

func (p *FixedCountPolicy) Name() string { return string(PolicyFixedCount) }

func (p *FixedCountPolicy) ShouldTerminate(_ context.Context, agentMessages []types.Message) (Decision, string) {
	if len(agentMessages) >= p.limit {
		return DecisionTerminate, fmt.Sprintf("reached turn ceiling (%d agent messages)", p.limit)
	}
	return DecisionContinue, ""
}

// ---------------------------------------------------------------------------
// 收敛评判策略
// ---------------------------------------------------------------------------

// convergenceState 策略状态机：
// NotStarted → Accumulating (count < minResponses) → Evaluating → Terminated。
// Evaluating 每轮重入，直到评判给出 terminate 或硬上限兜底生效。
type convergenceState int

const (
	stateNotStarted convergenceState = iota
	stateAccumulating
	stateEvaluating
	stateTerminated
)

func (s convergenceState) String() string {
	switch s {
	case stateAccumulating:
		return "accumulating"
	case stateEvaluating:
		return "evaluating"
	case stateTerminated:
		return "terminated"
	default:
		return "not_started"
	}
}

// judgePromptTemplate 收敛评判提示词。
// 评判模型必须以 CONTINUE 或 TERMINATE 开头作答，决策只取首个 token。
const judgePromptTemplate = `You are moderating a multi-agent discussion. Decide whether further turns would add value.

Recent contributions (most recent last):
{{range .Messages}}
[turn {{.Turn}}] {{.Author}}: {{.Content}}
{{end}}
Answer with exactly one line starting with CONTINUE or TERMINATE, followed by a colon and a brief reason.
TERMINATE only when the agents have converged: the discussion is repetitive, concluded, or no agent is adding new information.`

// ConvergenceConfig 收敛策略配置。
type ConvergenceConfig struct {
	// Model 评判模型名
	Model string `yaml:"model" json:"model"`

	// JudgeWindow 送入评判的最近 Agent 消息条数，默认 6
	JudgeWindow int `yaml:"judge_window" json:"judge_window"`

	// MinResponses 最小响应下限；0 时由 NewConvergencePolicy 填为参与者数
	MinResponses int `yaml:"min_responses" json:"min_responses"`
}

// ConvergencePolicy 用 LLM 评判讨论是否已收敛。
//
// 在每个参与者至少发言一次之前绝不终止；评判调用失败或输出不可解析时
// 一律视为 continue——终止只能来自显式的 TERMINATE 判词，不能来自错误。
// 硬上限由编排器兜底，与评判输出无关。
type ConvergencePolicy struct {
	judge   llm.Provider
	config  ConvergenceConfig
	tmpl    *template.Template
	state   convergenceState
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewConvergencePolicy 创建收敛策略。participantCount 作为最小响应下限。
func NewConvergencePolicy(judge llm.Provider, participantCount int, config ConvergenceConfig, logger *zap.Logger) *ConvergencePolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.JudgeWindow <= 0 {
		config.JudgeWindow = 6
	}
	if config.MinResponses <= 0 {
		config.MinResponses = participantCount
	}
	return &ConvergencePolicy{
		judge:  judge,
		config: config,
		tmpl:   template.Must(template.New("judge").Parse(judgePromptTemplate)),
		state:  stateNotStarted,
		logger: logger.With(zap.String("component", "convergence_policy")),
	}
}

func (p *ConvergencePolicy) Name() string { return string(PolicyConvergence) }

// WithMetrics 接入指标收集器，按判词记录每次评判调用。
func (p *ConvergencePolicy) WithMetrics(m *metrics.Collector) *ConvergencePolicy {
	p.metrics = m
	return p
}

// State 返回当前状态名（观测用）。
func (p *ConvergencePolicy) State() string { return p.state.String() }

func (p *ConvergencePolicy) ShouldTerminate(ctx context.Context, agentMessages []types.Message) (Decision, string) {
	if len(agentMessages) < p.config.MinResponses {
		p.transition(stateAccumulating)
		return DecisionContinue, ""
	}
	p.transition(stateEvaluating)

	window := agentMessages
	if len(window) > p.config.JudgeWindow {
		window = window[len(window)-p.config.JudgeWindow:]
	}

	verdict, reason, err := p.callJudge(ctx, window)
	if err != nil {
		p.logger.Warn("judge call failed, defaulting to continue",
			zap.Int("agent_messages", len(agentMessages)),
			zap.Error(err),
		)
		if p.metrics != nil {
			p.metrics.RecordJudgeVerdict("defaulted")
		}
		return DecisionContinue, ""
	}
	if p.metrics != nil {
		p.metrics.RecordJudgeVerdict(verdict.String())
	}
	if verdict == DecisionTerminate {
		p.transition(stateTerminated)
	}
	return verdict, reason
}

func (p *ConvergencePolicy) callJudge(ctx context.Context, window []types.Message) (Decision, string, error) {
	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, struct{ Messages []types.Message }{window}); err != nil {
		return DecisionContinue, "", err
	}

	resp, err := p.judge.Completion(ctx, &llm.ChatRequest{
		Model: p.config.Model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return DecisionContinue, "", types.NewError(types.ErrJudgeDefaulted, "convergence judge call failed").WithCause(err)
	}

	return parseVerdict(resp.Text())
}

// parseVerdict 从评判输出的首个 token 解析决策。
// 不可解析的输出视为错误，上层折算为 continue。
func parseVerdict(text string) (Decision, string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return DecisionContinue, "", types.NewError(types.ErrJudgeDefaulted, "empty judge verdict")
	}

	head := trimmed
	reason := ""
	if idx := strings.IndexAny(trimmed, ":\n"); idx >= 0 {
		head = trimmed[:idx]
		reason = strings.TrimSpace(trimmed[idx+1:])
	}

	switch strings.ToUpper(strings.TrimSpace(head)) {
	case "TERMINATE":
		return DecisionTerminate, reason, nil
	case "CONTINUE":
		return DecisionContinue, reason, nil
	default:
		return DecisionContinue, "", types.NewError(types.ErrJudgeDefaulted,
			fmt.Sprintf("unparseable judge verdict: %.40s", trimmed))
	}
}

func (p *ConvergencePolicy) transition(to convergenceState) {
	if p.state == to {
		return
	}
	p.logger.Debug("policy state transition",
		zap.String("from", p.state.String()),
		zap.String("to", to.String()),
	)
	p.state = to
}
