package types

import (
	"time"
)

// AuthorUser is the reserved author name for the seed message of a
// conversation. Agent names must never collide with it.
const AuthorUser = "user"

// Message represents a single contribution to a group-chat session.
// Messages are immutable once created; the session log is append-only.
type Message struct {
	// ID uniquely identifies the message within the store.
	ID string `json:"id"`

	// Author is either AuthorUser for the seed message or an agent name.
	Author string `json:"author"`

	// Content is the message text.
	Content string `json:"content"`

	// Turn is the global emission order within the session.
	// The seed user message is turn 0; agent turns count up from 1.
	Turn int `json:"turn"`

	// Timestamp is when the message was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Metadata carries optional per-message annotations (round number,
	// degraded-mode markers and the like).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewSeedMessage creates the turn-0 user message that opens a conversation.
func NewSeedMessage(content string) Message {
	return Message{
		Author:    AuthorUser,
		Content:   content,
		Turn:      0,
		Timestamp: time.Now(),
	}
}

// NewAgentMessage creates an agent-authored message for the given turn.
func NewAgentMessage(author, content string, turn int) Message {
	return Message{
		Author:    author,
		Content:   content,
		Turn:      turn,
		Timestamp: time.Now(),
	}
}

// IsUser reports whether the message was authored by the user.
func (m Message) IsUser() bool { return m.Author == AuthorUser }

// WithMetadata returns a copy of the message with the given metadata merged in.
func (m Message) WithMetadata(meta map[string]any) Message {
	if len(meta) == 0 {
		return m
	}
	merged := make(map[string]any, len(m.Metadata)+len(meta))
	for k, v := range m.Metadata {
		merged[k] = v
	}
	for k, v := range meta {
		merged[k] = v
	}
	m.Metadata = merged
	return m
}

// AgentMessages filters a message slice down to agent-authored entries,
// preserving order.
func AgentMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsUser() {
			out = append(out, m)
		}
	}
	return out
}

// SessionInfo describes a conversation session held by a session store.
type SessionInfo struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	MessageCount   int       `json:"message_count"`
}
