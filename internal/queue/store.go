package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job status values
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrResultNotFound is returned by ResultStore.Get for unknown or expired jobs.
var ErrResultNotFound = stderrors.New("job result not found")

// JobResult is what a finished job leaves behind.
type JobResult struct {
	JobID       string          `json:"job_id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorCode   string          `json:"error_code,omitempty"`
	Attempts    int             `json:"attempts"`
	DurationMs  int64           `json:"duration_ms"`
	CompletedAt time.Time       `json:"completed_at"`
}

// ResultStore persists job results.
type ResultStore interface {
	Save(ctx context.Context, r *JobResult) error
	Get(ctx context.Context, jobID string) (*JobResult, error)
}

// RedisResultStore keeps results as JSON strings under "<prefix>:<job id>"
// that expire after a TTL.
type RedisResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisResultStore connects to redisURL and checks the connection.
func NewRedisResultStore(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisResultStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisResultStoreWithClient(client, prefix, ttl), nil
}

// NewRedisResultStoreWithClient wraps an existing client.
func NewRedisResultStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisResultStore {
	return &RedisResultStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisResultStore) key(jobID string) string {
	return s.prefix + ":" + jobID
}

// Save writes r, replacing any earlier result for the same job.
func (s *RedisResultStore) Save(ctx context.Context, r *JobResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}
	if err := s.client.Set(ctx, s.key(r.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result for job %s: %w", r.JobID, err)
	}
	return nil
}

// Get reads the result of jobID.
func (s *RedisResultStore) Get(ctx context.Context, jobID string) (*JobResult, error) {
	data, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read result for job %s: %w", jobID, err)
	}

	var r JobResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("corrupt result for job %s: %w", jobID, err)
	}
	return &r, nil
}

// Close closes the Redis connection.
func (s *RedisResultStore) Close() error {
	return s.client.Close()
}

// MemoryResultStore is an in-process ResultStore without expiry.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]*JobResult
}

// NewMemoryResultStore creates an empty store.
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]*JobResult)}
}

func (m *MemoryResultStore) Save(_ context.Context, r *JobResult) error {
	copied := *r
	m.mu.Lock()
	m.results[r.JobID] = &copied
	m.mu.Unlock()
	return nil
}

func (m *MemoryResultStore) Get(_ context.Context, jobID string) (*JobResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[jobID]
	if !ok {
		return nil, ErrResultNotFound
	}
	copied := *r
	return &copied, nil
}
