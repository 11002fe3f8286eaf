// Package session provides the conversation session store backing the
// group-chat orchestrator.
//
// The store owns no business logic: it is an append-only per-session message
// log with snapshot reads, safe for concurrent access from unrelated
// conversations.
//
// Supported backends:
// - Memory: for single-process deployments and testing (default)
// - Redis: for distributed deployments where several replicas share sessions
package session

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agentchat/types"
)

// Common errors
var (
	ErrNotFound     = errors.New("session not found")
	ErrStoreClosed  = errors.New("session store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// Store is the session store contract.
//
// Append to a nonexistent session implicitly creates it. Read returns a
// snapshot copy, never a live reference. Operations on one session are
// linearizable with each other; operations on different sessions are
// independent.
type Store interface {
	// Create allocates a new empty session and returns its id.
	Create(ctx context.Context) (string, error)

	// Append adds a message to the session log, creating the session if needed.
	Append(ctx context.Context, sessionID string, msg types.Message) error

	// Read returns an ordered snapshot of the session's messages.
	// A nonexistent session reads as an empty log.
	Read(ctx context.Context, sessionID string) ([]types.Message, error)

	// Clear removes the session entirely.
	Clear(ctx context.Context, sessionID string) error

	// Exists reports whether the session is present.
	Exists(ctx context.Context, sessionID string) (bool, error)

	// Info returns session metadata.
	Info(ctx context.Context, sessionID string) (*types.SessionInfo, error)

	// Close releases backend resources.
	Close() error
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr      string        `yaml:"addr" json:"addr"`
	Password  string        `yaml:"password" json:"password"`
	DB        int           `yaml:"db" json:"db"`
	PoolSize  int           `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"` // 0 = no expiry
}

// Config selects and configures a session store backend.
type Config struct {
	Type StoreType `yaml:"type" json:"type"`

	// MaxIdle bounds how long an untouched session survives the cleanup
	// sweep on the memory backend. Zero disables the sweep.
	MaxIdle time.Duration `yaml:"max_idle" json:"max_idle"`

	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// DefaultConfig returns the default store configuration (memory backend,
// no idle eviction).
func DefaultConfig() Config {
	return Config{Type: StoreTypeMemory}
}
