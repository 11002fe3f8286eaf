package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/agentchat/types"
)

// RedisStore is the redis-backed implementation of Store.
// Suitable for deployments where several replicas serve the same logical
// conversations. Continuity is best-effort: the module makes no durability
// guarantee beyond what the redis deployment provides.
//
// Layout per session:
//
//	<prefix>msgs:<id>  - list of JSON-encoded messages, RPUSH order = turn order
//	<prefix>meta:<id>  - hash with created_at / last_activity
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisStore creates a redis session store and verifies connectivity.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "agentchat:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: prefix + "session:",
		ttl:       cfg.TTL,
		logger:    logger.With(zap.String("component", "session_store"), zap.String("backend", "redis")),
	}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests with
// miniredis and by callers that share a connection pool.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keyPrefix == "" {
		keyPrefix = "agentchat:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "session:",
		ttl:       ttl,
		logger:    logger.With(zap.String("component", "session_store"), zap.String("backend", "redis")),
	}
}

func (s *RedisStore) msgsKey(id string) string { return s.keyPrefix + "msgs:" + id }
func (s *RedisStore) metaKey(id string) string { return s.keyPrefix + "meta:" + id }

// Close closes the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }

// Create allocates a new empty session.
func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.metaKey(id), "created_at", now, "last_activity", now)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.metaKey(id), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// Append adds a message to the session log. A missing session is created
// implicitly; the per-key RPUSH keeps one session's log linearizable.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msg types.Message) error {
	if sessionID == "" {
		return ErrInvalidInput
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.msgsKey(sessionID), data)
	pipe.HSetNX(ctx, s.metaKey(sessionID), "created_at", now)
	pipe.HSet(ctx, s.metaKey(sessionID), "last_activity", now)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.msgsKey(sessionID), s.ttl)
		pipe.Expire(ctx, s.metaKey(sessionID), s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Read returns an ordered snapshot of the session's messages.
func (s *RedisStore) Read(ctx context.Context, sessionID string) ([]types.Message, error) {
	raw, err := s.client.LRange(ctx, s.msgsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	out := make([]types.Message, 0, len(raw))
	for _, item := range raw {
		var msg types.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.logger.Warn("skipping undecodable message",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Clear removes the session entirely.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.msgsKey(sessionID), s.metaKey(sessionID)).Err()
}

// Exists reports whether the session is present.
func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.metaKey(sessionID), s.msgsKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Info returns session metadata.
func (s *RedisStore) Info(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	meta, err := s.client.HGetAll(ctx, s.metaKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, ErrNotFound
	}

	count, err := s.client.LLen(ctx, s.msgsKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	info := &types.SessionInfo{ID: sessionID, MessageCount: int(count)}
	if v, ok := meta["created_at"]; ok {
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v, ok := meta["last_activity"]; ok {
		info.LastActivityAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return info, nil
}
