package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/internal/clock"
)

const statusKeyPrefix = "billing:job:"

// Store keeps the pollable status of billing jobs. Get reports false for
// unknown or expired ids.
type Store interface {
	Save(ctx context.Context, id string, status domain.JobStatus) error
	Get(ctx context.Context, id string) (domain.JobStatus, bool, error)
}

func statusKey(id string) string {
	return statusKeyPrefix + id
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, id string, status domain.JobStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode job status: %w", err)
	}
	return s.client.Set(ctx, statusKey(id), payload, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (domain.JobStatus, bool, error) {
	payload, err := s.client.Get(ctx, statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.JobStatus{}, false, nil
	}
	if err != nil {
		return domain.JobStatus{}, false, err
	}
	var status domain.JobStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return domain.JobStatus{}, false, fmt.Errorf("decode job status: %w", err)
	}
	return status, true, nil
}

type memoryEntry struct {
	status    domain.JobStatus
	expiresAt time.Time
}

// MemoryStore keeps job status in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clock.Clock
}

func NewMemoryStore(ttl time.Duration, c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		ttl:     ttl,
		clock:   c,
	}
}

func (s *MemoryStore) Save(_ context.Context, id string, status domain.JobStatus) error {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{status: cloneStatus(status)}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.entries[id] = entry
	s.evictExpired(now)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.JobStatus, bool, error) {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok || expired(entry, now) {
		return domain.JobStatus{}, false, nil
	}
	return cloneStatus(entry.status), true, nil
}

// evictExpired must be called with the write lock held.
func (s *MemoryStore) evictExpired(now time.Time) {
	for id, entry := range s.entries {
		if expired(entry, now) {
			delete(s.entries, id)
		}
	}
}

func expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}

func cloneStatus(status domain.JobStatus) domain.JobStatus {
	if status.Result == nil {
		return status
	}
	result := make(map[string]string, len(status.Result))
	for k, v := range status.Result {
		result[k] = v
	}
	status.Result = result
	return status
}
