package blackboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/traceloom/traceloom-backend/internal/platform/envutil"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

// Store is the shared scratch space the agentic tool loop reads and writes.
// Keys are namespaced per session.
type Store interface {
	Write(ctx context.Context, sessionID string, key string, value string) error
	Read(ctx context.Context, sessionID string, key string) (string, bool, error)
	Keys(ctx context.Context, sessionID string) ([]string, error)
}

type redisStore struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisStore(log *logger.Logger) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	ttlHours := envutil.Int("BLACKBOARD_TTL_HOURS", 72)
	if ttlHours < 1 {
		ttlHours = 72
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisStore{
		log: log.With("store", "Blackboard"),
		rdb: rdb,
		ttl: time.Duration(ttlHours) * time.Hour,
	}, nil
}

func (s *redisStore) key(sessionID, key string) string {
	return "blackboard:" + sessionID + ":" + key
}

func (s *redisStore) Write(ctx context.Context, sessionID string, key string, value string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("blackboard: session and key required")
	}
	return s.rdb.Set(ctx, s.key(sessionID, key), value, s.ttl).Err()
}

func (s *redisStore) Read(ctx context.Context, sessionID string, key string) (string, bool, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(key) == "" {
		return "", false, fmt.Errorf("blackboard: session and key required")
	}
	v, err := s.rdb.Get(ctx, s.key(sessionID, key)).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *redisStore) Keys(ctx context.Context, sessionID string) ([]string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("blackboard: session required")
	}
	prefix := "blackboard:" + sessionID + ":"
	var out []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryStore is the in-process fallback used by tests and by deployments
// without Redis.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (s *MemoryStore) Write(_ context.Context, sessionID string, key string, value string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("blackboard: session and key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID+":"+key] = value
	return nil
}

func (s *MemoryStore) Read(_ context.Context, sessionID string, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[sessionID+":"+key]
	return v, ok, nil
}

func (s *MemoryStore) Keys(_ context.Context, sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := sessionID + ":"
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
	}
	return out, nil
}
