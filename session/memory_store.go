package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentchat/types"
)

type sessionRecord struct {
	mu             sync.Mutex
	messages       []types.Message
	createdAt      time.Time
	lastActivityAt time.Time
}

// MemoryStore is the in-memory implementation of Store.
// Suitable for single-process deployments and testing. Data is lost on restart.
//
// A store-level RWMutex guards the session map; a per-session mutex guards
// each log, so appends to different sessions never contend.
type MemoryStore struct {
	sessions map[string]*sessionRecord
	mu       sync.RWMutex
	closed   bool
	logger   *zap.Logger

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// NewMemoryStore creates a new in-memory session store. When cfg.MaxIdle is
// positive, a background sweep removes sessions idle for longer than that.
func NewMemoryStore(cfg Config, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		sessions:    make(map[string]*sessionRecord),
		logger:      logger.With(zap.String("component", "session_store"), zap.String("backend", "memory")),
		stopCleanup: make(chan struct{}),
	}
	if cfg.MaxIdle > 0 {
		go s.cleanupLoop(cfg.MaxIdle)
	}
	return s
}

func (s *MemoryStore) cleanupLoop(maxIdle time.Duration) {
	interval := maxIdle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.sweep(maxIdle)
		}
	}
}

func (s *MemoryStore) sweep(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.sessions {
		rec.mu.Lock()
		idle := rec.lastActivityAt.Before(cutoff)
		rec.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			s.logger.Debug("idle session evicted", zap.String("session_id", id))
		}
	}
}

// Close stops the cleanup sweep and marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cleanupOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

// Create allocates a new empty session.
func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	now := time.Now()
	s.sessions[id] = &sessionRecord{createdAt: now, lastActivityAt: now}
	return id, nil
}

// getOrCreate returns the record for sessionID, creating it if absent.
func (s *MemoryStore) getOrCreate(sessionID string) (*sessionRecord, error) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrStoreClosed
	}
	if ok {
		return rec, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if rec, ok = s.sessions[sessionID]; ok {
		return rec, nil
	}
	now := time.Now()
	rec = &sessionRecord{createdAt: now, lastActivityAt: now}
	s.sessions[sessionID] = rec
	return rec, nil
}

// Append adds a message to the session log. Lenient: a missing session is
// created on first append.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, msg types.Message) error {
	if sessionID == "" {
		return ErrInvalidInput
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	rec, err := s.getOrCreate(sessionID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.messages = append(rec.messages, msg)
	rec.lastActivityAt = time.Now()
	return nil
}

// Read returns an ordered snapshot of the session's messages. A nonexistent
// session reads as an empty log.
func (s *MemoryStore) Read(ctx context.Context, sessionID string) ([]types.Message, error) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrStoreClosed
	}
	if !ok {
		return []types.Message{}, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]types.Message, len(rec.messages))
	copy(out, rec.messages)
	return out, nil
}

// Clear removes the session entirely.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.sessions, sessionID)
	return nil
}

// Exists reports whether the session is present.
func (s *MemoryStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	_, ok := s.sessions[sessionID]
	return ok, nil
}

// Info returns session metadata.
func (s *MemoryStore) Info(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return &types.SessionInfo{
		ID:             sessionID,
		CreatedAt:      rec.createdAt,
		LastActivityAt: rec.lastActivityAt,
		MessageCount:   len(rec.messages),
	}, nil
}
