package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"statusgen/internal/status"
)

// ErrNotFound is returned when no state is stored for a session.
var ErrNotFound = errors.New("session not found")

// StateStore keeps the composed status of a session for at most its TTL.
type StateStore interface {
	Load(ctx context.Context, id string) (status.State, error)
	Save(ctx context.Context, id string, state status.State, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	state     status.State
	expiresAt time.Time
}

// MemoryStates is an in-process StateStore for single-instance deployments.
type MemoryStates struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStates() *MemoryStates {
	return &MemoryStates{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStates) Load(_ context.Context, id string) (status.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return status.State{}, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, id)
		return status.State{}, ErrNotFound
	}
	return e.state.Clone(), nil
}

func (m *MemoryStates) Save(_ context.Context, id string, state status.State, ttl time.Duration) error {
	e := memoryEntry{state: state.Clone()}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStates) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// DefaultKeyPrefix namespaces session keys in redis.
const DefaultKeyPrefix = "statusgen:session:"

// RedisConfig holds the redis connection settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisStates stores session state as JSON in redis so several instances can
// serve the same browser session.
type RedisStates struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStates connects to redis and checks the connection.
func NewRedisStates(ctx context.Context, cfg RedisConfig) (*RedisStates, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStatesWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisStatesWithClient wraps an existing client.
func NewRedisStatesWithClient(client *redis.Client, keyPrefix string) *RedisStates {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStates{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStates) key(id string) string {
	return s.keyPrefix + id
}

func (s *RedisStates) Load(ctx context.Context, id string) (status.State, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return status.State{}, ErrNotFound
		}
		return status.State{}, fmt.Errorf("failed to get session from redis: %w", err)
	}
	var state status.State
	if err := json.Unmarshal(data, &state); err != nil {
		return status.State{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return state, nil
}

func (s *RedisStates) Save(ctx context.Context, id string, state status.State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

func (s *RedisStates) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// Close releases the redis connection pool.
func (s *RedisStates) Close() error {
	return s.client.Close()
}
