package store

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"taxregistry/internal/taxpayer/models"
)

// Sequence hands out taxpayer identifiers. Values are strictly increasing
// and never repeated; gaps are allowed.
type Sequence interface {
	Next(ctx context.Context) (models.TID, error)
}

// MemorySequence is a process-local counter starting at 0. It is not
// goroutine-safe on its own; InMemory only calls it under its write lock.
type MemorySequence struct {
	next models.TID
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{}
}

func (s *MemorySequence) Next(_ context.Context) (models.TID, error) {
	tid := s.next
	s.next++
	return tid, nil
}

type incrementer interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
}

// RedisSequence keeps the counter in Redis so identifiers survive process
// restarts. INCR starts at 1, so tid = value - 1 keeps the zero base.
type RedisSequence struct {
	client incrementer
	key    string
}

func NewRedisSequence(client incrementer, key string) *RedisSequence {
	return &RedisSequence{client: client, key: key}
}

func (s *RedisSequence) Next(ctx context.Context) (models.TID, error) {
	v, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate tid: %w: %w", ErrUnavailable, err)
	}
	if v < 1 {
		return 0, fmt.Errorf("allocate tid: %w: counter %q at %d", ErrUnavailable, s.key, v)
	}
	return models.TID(v - 1), nil
}
