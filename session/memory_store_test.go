package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentchat/types"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(DefaultConfig(), nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStore_CreateAndExists(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_LenientAppend(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	// Append to a session that was never created.
	err := s.Append(ctx, "implicit", types.NewSeedMessage("hello"))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "implicit")
	require.NoError(t, err)
	assert.True(t, ok)

	msgs, err := s.Read(ctx, "implicit")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].ID)
}

func TestMemoryStore_ReadReturnsSnapshot(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, id, types.NewSeedMessage("seed")))

	snap, err := s.Read(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, id, types.NewAgentMessage("a", "later", 1)))

	// Snapshot taken before the second append must not see it.
	assert.Len(t, snap, 1)

	snap[0].Content = "mutated"
	fresh, err := s.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "seed", fresh[0].Content)
}

func TestMemoryStore_ReadMissingSessionIsEmpty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	msgs, err := s.Read(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStore_Clear(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, id, types.NewSeedMessage("x")))
	require.NoError(t, s.Clear(ctx, id))

	ok, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Info(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Info(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, id, types.NewSeedMessage("x")))
	require.NoError(t, s.Append(ctx, id, types.NewAgentMessage("a", "y", 1)))

	info, err := s.Info(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, info.MessageCount)
	assert.False(t, info.CreatedAt.IsZero())
	assert.False(t, info.LastActivityAt.Before(info.CreatedAt))
}

func TestMemoryStore_ClosedStoreRejectsOps(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(DefaultConfig(), nil)
	require.NoError(t, s.Close())

	_, err := s.Create(context.Background())
	assert.ErrorIs(t, err, ErrStoreClosed)
	err = s.Append(context.Background(), "x", types.NewSeedMessage("x"))
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemoryStore_ConcurrentSessionsDoNotInterleave(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	const sessions = 8
	const perSession = 50

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", n)
			for turn := 0; turn < perSession; turn++ {
				_ = s.Append(ctx, id, types.NewAgentMessage("agent", fmt.Sprintf("m%d", turn), turn))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		msgs, err := s.Read(ctx, fmt.Sprintf("session-%d", i))
		require.NoError(t, err)
		require.Len(t, msgs, perSession)
		for turn, m := range msgs {
			assert.Equal(t, turn, m.Turn, "session %d, position %d", i, turn)
		}
	}
}

func TestMemoryStore_IdleSweepEvicts(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(Config{Type: StoreTypeMemory, MaxIdle: 10 * time.Millisecond}, nil)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		ok, _ := s.Exists(ctx, id)
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
}

// Appends in any order of content always read back in exactly the order they
// were appended, regardless of interleaved reads.
func TestMemoryStore_AppendOrderProperty(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		s := NewMemoryStore(DefaultConfig(), nil)
		defer s.Close()
		ctx := context.Background()

		count := rapid.IntRange(0, 40).Draw(rt, "count")
		contents := make([]string, count)
		for i := 0; i < count; i++ {
			contents[i] = rapid.StringN(0, 64, 64).Draw(rt, "content")
			if err := s.Append(ctx, "p", types.NewAgentMessage("a", contents[i], i)); err != nil {
				rt.Fatalf("append: %v", err)
			}
			if rapid.Bool().Draw(rt, "interleaveRead") {
				if _, err := s.Read(ctx, "p"); err != nil {
					rt.Fatalf("read: %v", err)
				}
			}
		}

		msgs, err := s.Read(ctx, "p")
		if err != nil {
			rt.Fatalf("final read: %v", err)
		}
		if len(msgs) != count {
			rt.Fatalf("got %d messages, want %d", len(msgs), count)
		}
		for i, m := range msgs {
			if m.Content != contents[i] || m.Turn != i {
				rt.Fatalf("position %d: got (%q, turn %d)", i, m.Content, m.Turn)
			}
		}
	})
}
