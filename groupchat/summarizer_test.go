package groupchat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentchat/types"
)

func TestSummarizeTrivialSessionSkipsModel(t *testing.T) {
	t.Parallel()

	provider := newScriptedProvider("summarizer", "should never be used")
	s := NewSummarizer(provider, SummarizerConfig{}, zap.NewNop())

	// Empty session.
	assert.Equal(t, SummaryNotAvailable, s.Summarize(context.Background(), nil))

	// Seed only, no agent responses.
	seedOnly := []types.Message{types.NewSeedMessage("hello")}
	assert.Equal(t, SummaryNotAvailable, s.Summarize(context.Background(), seedOnly))

	assert.Equal(t, int64(0), provider.calls.Load(), "trivial sessions must not call the model")
}

func TestSummarizeHappyPath(t *testing.T) {
	t.Parallel()

	provider := newScriptedProvider("summarizer", "Topic: offsite planning. Key insights: ...")
	s := NewSummarizer(provider, SummarizerConfig{}, zap.NewNop())

	history := []types.Message{
		types.NewSeedMessage("plan the offsite"),
		types.NewAgentMessage("researcher", "two venue options", 1),
		types.NewAgentMessage("planner", "option A fits the budget", 2),
	}

	summary := s.Summarize(context.Background(), history)
	assert.Equal(t, "Topic: offsite planning. Key insights: ...", summary)

	req := provider.lastRequest()
	require.NotNil(t, req)
	transcript := req.Messages[len(req.Messages)-1].Content
	assert.Contains(t, transcript, "plan the offsite")
	assert.Contains(t, transcript, "[turn 1] researcher: two venue options")
	assert.Contains(t, transcript, "[turn 2] planner: option A fits the budget")
}

func TestSummarizeDegradesOnProviderFailure(t *testing.T) {
	t.Parallel()

	provider := newScriptedProvider("summarizer")
	provider.err = errors.New("model unavailable")
	s := NewSummarizer(provider, SummarizerConfig{}, zap.NewNop())

	history := []types.Message{
		types.NewSeedMessage("plan the offsite"),
		types.NewAgentMessage("researcher", "two venue options", 1),
		types.NewAgentMessage("planner", "option A fits the budget", 2),
	}

	summary := s.Summarize(context.Background(), history)
	assert.True(t, strings.HasPrefix(summary, degradedSummaryMarker))
	assert.Contains(t, summary, "researcher, planner")
	assert.Contains(t, summary, "2 message(s)")
	assert.Contains(t, summary, "option A fits the budget")
}

func TestSummarizeDegradesOnEmptyResponse(t *testing.T) {
	t.Parallel()

	provider := newScriptedProvider("summarizer", "   ")
	s := NewSummarizer(provider, SummarizerConfig{}, zap.NewNop())

	history := []types.Message{
		types.NewSeedMessage("topic"),
		types.NewAgentMessage("a", "only contribution", 1),
	}

	summary := s.Summarize(context.Background(), history)
	assert.True(t, strings.HasPrefix(summary, degradedSummaryMarker))
}

func TestSummarizeSnippetCap(t *testing.T) {
	t.Parallel()

	provider := newScriptedProvider("summarizer", "done")
	s := NewSummarizer(provider, SummarizerConfig{SnippetMaxChars: 20}, zap.NewNop())

	long := strings.Repeat("x", 200)
	history := []types.Message{
		types.NewSeedMessage("topic"),
		types.NewAgentMessage("a", long, 1),
	}

	_ = s.Summarize(context.Background(), history)

	transcript := provider.lastRequest().Messages[1].Content
	assert.NotContains(t, transcript, long)
	assert.Contains(t, transcript, strings.Repeat("x", 20)+"...")
}

func TestSummarizeTokenBudgetDropsOldest(t *testing.T) {
	t.Parallel()

	provider := newScriptedProvider("summarizer", "done")
	s := NewSummarizer(provider, SummarizerConfig{TranscriptTokenBudget: 60}, zap.NewNop())

	history := []types.Message{types.NewSeedMessage("topic")}
	for i := 1; i <= 8; i++ {
		history = append(history, types.NewAgentMessage("a",
			strings.Repeat("filler words here ", 10), i))
	}

	_ = s.Summarize(context.Background(), history)

	transcript := provider.lastRequest().Messages[1].Content
	assert.Contains(t, transcript, "User topic: topic", "seed line survives eviction")
	assert.Contains(t, transcript, "[turn 8]", "newest contribution survives eviction")
	assert.NotContains(t, transcript, "[turn 1]", "oldest contribution is evicted first")
}

func TestTruncateUTF8Safe(t *testing.T) {
	t.Parallel()

	s := truncate("会议纪要摘要内容", 7)
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.True(t, strings.HasPrefix(s, "会议"))
}
