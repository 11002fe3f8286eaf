// Package thread maps (endpoint, agent, conversation) triples to external
// provider-side thread ids, giving each hosted agent continuity of its own
// server-side history across turns of one logical conversation.
package thread

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/agentchat/llm"
	"github.com/BaSui01/agentchat/types"
)

// Key identifies one external thread mapping. Exactly one mapping exists per
// distinct key at any time.
type Key struct {
	Endpoint       string
	AgentID        string
	ConversationID string
}

func (k Key) flightKey() string {
	// NUL separators keep distinct triples from colliding.
	return k.Endpoint + "\x00" + k.AgentID + "\x00" + k.ConversationID
}

type entry struct {
	threadID  string
	createdAt time.Time
	lastUsed  time.Time
}

// Registry is the shared thread mapping. It supports concurrent lookups and
// inserts from unrelated conversations; racing first uses of the same key
// create the external thread exactly once.
//
// Mappings are never evicted by default (the conversations-live-forever
// policy of the original design). Callers that need to bound growth can call
// Forget when a conversation ends, or PurgeIdle from a maintenance loop.
type Registry struct {
	mu      sync.RWMutex
	threads map[Key]*entry
	group   singleflight.Group
	logger  *zap.Logger
}

// NewRegistry creates an empty thread registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		threads: make(map[Key]*entry),
		logger:  logger.With(zap.String("component", "thread_registry")),
	}
}

// GetOrCreate returns the external thread id for the key, creating the
// thread via client on first use.
//
// When key.ConversationID is empty the conversation is one-shot: a fresh
// thread is always created and never cached.
//
// On creation, user-authored messages from history are replayed into the new
// thread in order, so an agent joining mid-conversation still sees the
// user's side. Assistant messages are not replayed; the provider's own
// thread state reconstructs those.
func (r *Registry) GetOrCreate(ctx context.Context, key Key, client llm.ThreadClient, history []types.Message) (string, error) {
	if key.ConversationID == "" {
		return r.createThread(ctx, key, client, history)
	}

	r.mu.RLock()
	e, ok := r.threads[key]
	r.mu.RUnlock()
	if ok {
		r.touch(key)
		return e.threadID, nil
	}

	// singleflight collapses concurrent first uses of the same key into a
	// single creation; losers get the winner's thread id.
	id, err, _ := r.group.Do(key.flightKey(), func() (any, error) {
		r.mu.RLock()
		e, ok := r.threads[key]
		r.mu.RUnlock()
		if ok {
			return e.threadID, nil
		}

		threadID, err := r.createThread(ctx, key, client, history)
		if err != nil {
			return "", err
		}

		now := time.Now()
		r.mu.Lock()
		r.threads[key] = &entry{threadID: threadID, createdAt: now, lastUsed: now}
		r.mu.Unlock()

		r.logger.Info("external thread created",
			zap.String("endpoint", key.Endpoint),
			zap.String("agent_id", key.AgentID),
			zap.String("conversation_id", key.ConversationID),
			zap.String("thread_id", threadID),
		)
		return threadID, nil
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (r *Registry) createThread(ctx context.Context, key Key, client llm.ThreadClient, history []types.Message) (string, error) {
	threadID, err := client.CreateThread(ctx)
	if err != nil {
		return "", types.NewError(types.ErrThreadCreation, "failed to create external thread").WithCause(err)
	}

	for _, msg := range history {
		if !msg.IsUser() {
			continue
		}
		if err := client.PostMessage(ctx, threadID, msg.Content); err != nil {
			r.logger.Warn("failed to replay user message into new thread",
				zap.String("thread_id", threadID),
				zap.Int("turn", msg.Turn),
				zap.Error(err),
			)
		}
	}
	return threadID, nil
}

func (r *Registry) touch(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.threads[key]; ok {
		e.lastUsed = time.Now()
	}
}

// Lookup returns the cached thread id without creating anything.
func (r *Registry) Lookup(key Key) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.threads[key]
	if !ok {
		return "", false
	}
	return e.threadID, true
}

// Forget drops every mapping belonging to the given conversation.
func (r *Registry) Forget(conversationID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for k := range r.threads {
		if k.ConversationID == conversationID {
			delete(r.threads, k)
			removed++
		}
	}
	return removed
}

// PurgeIdle drops mappings not used within maxIdle and returns how many were
// removed.
func (r *Registry) PurgeIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for k, e := range r.threads {
		if e.lastUsed.Before(cutoff) {
			delete(r.threads, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live mappings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.threads)
}
