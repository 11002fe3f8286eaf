package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 群聊编排指标收集器
type Collector struct {
	// 会话指标
	conversationsTotal   *prometheus.CounterVec
	conversationDuration *prometheus.HistogramVec

	// 轮次指标
	agentTurnsTotal   *prometheus.CounterVec
	agentTurnDuration *prometheus.HistogramVec
	agentSkipsTotal   *prometheus.CounterVec

	// 终止与评判指标
	terminationsTotal *prometheus.CounterVec
	judgeCallsTotal   *prometheus.CounterVec

	// 摘要与降级指标
	summariesTotal      *prometheus.CounterVec
	fallbackActivations prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 会话指标
	c.conversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Total number of group-chat conversations by outcome",
		},
		[]string{"status"}, // status: completed, fallback, failed
	)

	c.conversationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_duration_seconds",
			Help:      "Group-chat conversation duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"policy"},
	)

	// 轮次指标
	c.agentTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_turns_total",
			Help:      "Total number of completed agent turns",
		},
		[]string{"agent", "kind"},
	)

	c.agentTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_turn_duration_seconds",
			Help:      "Agent turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent", "kind"},
	)

	c.agentSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_skips_total",
			Help:      "Total number of skipped agent turns",
		},
		[]string{"agent", "reason"}, // reason: unresolved, respond_failed
	)

	// 终止与评判指标
	c.terminationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Total number of conversation terminations by cause",
		},
		[]string{"policy", "cause"}, // cause: policy, ceiling
	)

	c.judgeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_calls_total",
			Help:      "Total number of convergence judge verdicts",
		},
		[]string{"verdict"}, // verdict: continue, terminate, defaulted
	)

	// 摘要与降级指标
	c.summariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Total number of post-chat summaries by outcome",
		},
		[]string{"outcome"}, // outcome: generated, degraded, skipped
	)

	c.fallbackActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_activations_total",
			Help:      "Total number of primary-loop failures recovered by the fixed-count fallback",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🗣 会话指标记录
// =============================================================================

// RecordConversation 记录一次会话结束
func (c *Collector) RecordConversation(status, policy string, duration time.Duration) {
	c.conversationsTotal.WithLabelValues(status).Inc()
	c.conversationDuration.WithLabelValues(policy).Observe(duration.Seconds())
}

// =============================================================================
// 🎭 轮次指标记录
// =============================================================================

// RecordAgentTurn 记录一次成功的 Agent 轮次
func (c *Collector) RecordAgentTurn(agent, kind string, duration time.Duration) {
	c.agentTurnsTotal.WithLabelValues(agent, kind).Inc()
	c.agentTurnDuration.WithLabelValues(agent, kind).Observe(duration.Seconds())
}

// RecordAgentSkip 记录一次被跳过的 Agent 轮次
func (c *Collector) RecordAgentSkip(agent, reason string) {
	c.agentSkipsTotal.WithLabelValues(agent, reason).Inc()
}

// =============================================================================
// 🛑 终止与评判指标记录
// =============================================================================

// RecordTermination 记录一次终止
func (c *Collector) RecordTermination(policy, cause string) {
	c.terminationsTotal.WithLabelValues(policy, cause).Inc()
}

// RecordJudgeVerdict 记录一次收敛评判结果
func (c *Collector) RecordJudgeVerdict(verdict string) {
	c.judgeCallsTotal.WithLabelValues(verdict).Inc()
}

// =============================================================================
// 📝 摘要与降级指标记录
// =============================================================================

// RecordSummary 记录一次摘要产出
func (c *Collector) RecordSummary(outcome string) {
	c.summariesTotal.WithLabelValues(outcome).Inc()
}

// RecordFallbackActivation 记录一次降级重跑
func (c *Collector) RecordFallbackActivation() {
	c.fallbackActivations.Inc()
}
