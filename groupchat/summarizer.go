package groupchat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/BaSui01/agentchat/llm"
	"github.com/BaSui01/agentchat/types"
)

// SummaryNotAvailable 会话不足一条 Agent 发言时的固定返回，不触发任何模型调用。
const SummaryNotAvailable = "No conversation to summarize."

// degradedSummaryMarker 降级摘要的固定前缀，调用方据此识别非模型产出。
const degradedSummaryMarker = "[auto-generated summary]"

const summarySystemPrompt = `You summarize a completed multi-agent discussion. Produce a concise structured summary with these sections:
- Topic: the user's original question or task.
- Key insights: the main contribution of each agent, by name.
- Unique perspectives: viewpoints only one agent raised.
- Agreement and disagreement: where the agents converged or conflicted.
- Action items: concrete follow-ups, if any were proposed.`

// SummarizerConfig 摘要器配置，零值即可用。
type SummarizerConfig struct {
	// Model 摘要模型名
	Model string `yaml:"model" json:"model"`

	// TranscriptTokenBudget 送入模型的转写 token 预算，默认 3000。
	// 超出预算时从最旧的发言开始丢弃。
	TranscriptTokenBudget int `yaml:"transcript_token_budget" json:"transcript_token_budget"`

	// SnippetMaxChars 单条发言的字符上限，默认 600，超出截断
	SnippetMaxChars int `yaml:"snippet_max_chars" json:"snippet_max_chars"`
}

// Summarizer 会话结束后生成一次性结构化摘要。
//
// 摘要永远不会让一次编排失败：模型调用出错时降级为启发式摘要
// （参与者列表 + 轮次数 + 截断摘录），并带固定标记前缀。
type Summarizer struct {
	provider llm.Provider
	config   SummarizerConfig
	logger   *zap.Logger

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewSummarizer 创建摘要器。
func NewSummarizer(provider llm.Provider, config SummarizerConfig, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TranscriptTokenBudget <= 0 {
		config.TranscriptTokenBudget = 3000
	}
	if config.SnippetMaxChars <= 0 {
		config.SnippetMaxChars = 600
	}
	return &Summarizer{
		provider: provider,
		config:   config,
		logger:   logger.With(zap.String("component", "summarizer")),
	}
}

// Summarize 生成会话摘要。
// 不足一条 Agent 发言时返回 SummaryNotAvailable 且不调用模型；
// 模型失败时返回带 degradedSummaryMarker 前缀的启发式摘要。
func (s *Summarizer) Summarize(ctx context.Context, messages []types.Message) string {
	agents := types.AgentMessages(messages)
	if len(agents) == 0 {
		return SummaryNotAvailable
	}

	transcript := s.buildTranscript(messages, agents)

	resp, err := s.provider.Completion(ctx, &llm.ChatRequest{
		Model: s.config.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarySystemPrompt},
			{Role: llm.RoleUser, Content: transcript},
		},
	})
	if err == nil {
		if text := strings.TrimSpace(resp.Text()); text != "" {
			return text
		}
		err = types.NewError(types.ErrSummaryDegraded, "summary model returned empty response")
	}

	s.logger.Warn("summary generation failed, falling back to heuristic summary",
		zap.Int("agent_messages", len(agents)),
		zap.Error(err),
	)
	return s.heuristicSummary(messages, agents)
}

// buildTranscript 拼装送入模型的转写：先按单条字符上限截断，
// 再按 token 预算从最旧发言开始丢弃。
func (s *Summarizer) buildTranscript(messages, agents []types.Message) string {
	lines := make([]string, 0, len(agents)+1)
	if seed := seedContent(messages); seed != "" {
		lines = append(lines, "User topic: "+truncate(seed, s.config.SnippetMaxChars))
	}
	for _, m := range agents {
		lines = append(lines, fmt.Sprintf("[turn %d] %s: %s",
			m.Turn, m.Author, truncate(m.Content, s.config.SnippetMaxChars)))
	}

	// 丢弃最旧的 Agent 发言直到进入预算；用户话题行始终保留。
	keep := 0
	if len(lines) > len(agents) {
		keep = 1
	}
	for len(lines) > keep+1 && s.countTokens(strings.Join(lines, "\n")) > s.config.TranscriptTokenBudget {
		copy(lines[keep:], lines[keep+1:])
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// heuristicSummary 降级摘要：参与者、轮次数与末段摘录。
func (s *Summarizer) heuristicSummary(messages, agents []types.Message) string {
	seen := make(map[string]bool, len(agents))
	participants := make([]string, 0, len(agents))
	for _, m := range agents {
		if !seen[m.Author] {
			seen[m.Author] = true
			participants = append(participants, m.Author)
		}
	}

	var sb strings.Builder
	sb.WriteString(degradedSummaryMarker)
	fmt.Fprintf(&sb, " %d agent(s) (%s) exchanged %d message(s)",
		len(participants), strings.Join(participants, ", "), len(agents))
	if seed := seedContent(messages); seed != "" {
		fmt.Fprintf(&sb, " on: %s", truncate(seed, 120))
	}
	sb.WriteString(".")

	last := agents[len(agents)-1]
	fmt.Fprintf(&sb, " Last contribution (%s): %s", last.Author, truncate(last.Content, 200))
	return sb.String()
}

// countTokens 计数 token，编码不可用时回退到 len/4 估算。
func (s *Summarizer) countTokens(text string) int {
	s.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			s.logger.Warn("init tiktoken encoding failed, using character estimate",
				zap.Error(err))
			return
		}
		s.enc = enc
	})
	if s.enc == nil {
		return len(text) / 4
	}
	return len(s.enc.Encode(text, nil, nil))
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	// 避免截在多字节字符中间
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}
