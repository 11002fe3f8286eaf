package groupchat

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentchat/types"
)

// collaborationInstructions 多智能体协作规则，拼接在每个非首发轮次提示词末尾。
const collaborationInstructions = `Collaboration rules:
- Acknowledge relevant points other agents have already made.
- Contribute your own unique value; do not restate what has been said.
- If you have nothing new to add, say so briefly instead of repeating.`

// firstTurnInstruction 首个响应者没有可参考的 Agent 发言，只提示其定好基调。
const firstTurnInstruction = `You are the first agent to respond. Set a strong foundation for the discussion.`

// BuildContext 为目标 Agent 构造本轮提示词。纯函数，无 IO、无状态。
//
// seed 是本次运行的用户话题——续聊时它是最新一条用户消息，不能从日志里
// 取最早那条。提示词包含：话题、其他 Agent 的既往发言（按轮次标注作者、
// 排除目标 Agent 自己的发言）、以及协作规则。会话中尚无任何 Agent 发言时
// 退化为首发提示。
func BuildContext(target, seed string, history []types.Message) string {
	var sb strings.Builder

	if seed != "" {
		sb.WriteString("Discussion topic: ")
		sb.WriteString(seed)
		sb.WriteString("\n\n")
	}

	if len(types.AgentMessages(history)) == 0 {
		sb.WriteString(firstTurnInstruction)
		return sb.String()
	}

	if others := priorContributions(target, history); len(others) > 0 {
		sb.WriteString("What other agents have said so far:\n")
		for _, m := range others {
			fmt.Fprintf(&sb, "[turn %d] %s: %s\n", m.Turn, m.Author, m.Content)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(collaborationInstructions)
	return sb.String()
}

func seedContent(history []types.Message) string {
	for _, m := range history {
		if m.IsUser() {
			return m.Content
		}
	}
	return ""
}

// priorContributions 返回除目标 Agent 外的既往 Agent 发言，保持原始顺序。
func priorContributions(target string, history []types.Message) []types.Message {
	out := make([]types.Message, 0, len(history))
	for _, m := range history {
		if m.IsUser() || m.Author == target {
			continue
		}
		out = append(out, m)
	}
	return out
}
