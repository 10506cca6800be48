package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

// RedisStateStore keeps engine status in Redis so multiple processes share
// a consistent view of each session.
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

// NewRedisStateStoreFromURL parses a Redis URL and verifies connectivity.
func NewRedisStateStoreFromURL(ctx context.Context, url string) (*RedisStateStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &RedisStateStore{client: client}, nil
}

// SetStatus records the session's engine status.
func (s *RedisStateStore) SetStatus(ctx context.Context, sessionID uuid.UUID, status domain.EngineState) error {
	if err := s.client.Set(ctx, stateKey(sessionID), string(status), 0).Err(); err != nil {
		return fmt.Errorf("set engine status: %w", err)
	}
	return nil
}

// Status returns the session's last recorded status. Unknown sessions
// report StateIdle.
func (s *RedisStateStore) Status(ctx context.Context, sessionID uuid.UUID) (domain.EngineState, error) {
	val, err := s.client.Get(ctx, stateKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.StateIdle, nil
	}
	if err != nil {
		return domain.StateIdle, fmt.Errorf("get engine status: %w", err)
	}
	return domain.EngineState(val), nil
}

// Close releases the underlying client.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}

func stateKey(sessionID uuid.UUID) string {
	return "chief:session:" + sessionID.String() + ":status"
}
