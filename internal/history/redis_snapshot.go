package history

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSnapshotPrefix = "moodtunes:history:"

// SnapshotStore persists store contents to Redis hashes (id -> unix millis)
// so the dedup window survives a restart.
type SnapshotStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewSnapshotStore creates a snapshot store. Keys expire after ttl, which
// should be the history max age: older snapshots carry only expired entries.
func NewSnapshotStore(client redis.Cmdable, prefix string, ttl time.Duration) *SnapshotStore {
	if prefix == "" {
		prefix = defaultSnapshotPrefix
	}
	return &SnapshotStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *SnapshotStore) redisKey(key string) string {
	return s.prefix + key
}

// Save replaces the snapshot stored under key
func (s *SnapshotStore) Save(ctx context.Context, key string, entries map[string]time.Time) error {
	rk := s.redisKey(key)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rk)
		if len(entries) == 0 {
			return nil
		}
		fields := make(map[string]interface{}, len(entries))
		for id, seen := range entries {
			fields[id] = seen.UnixMilli()
		}
		pipe.HSet(ctx, rk, fields)
		if s.ttl > 0 {
			pipe.PExpire(ctx, rk, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save history snapshot %s: %w", key, err)
	}
	return nil
}

// Load reads the snapshot stored under key. A missing key yields an empty map.
func (s *SnapshotStore) Load(ctx context.Context, key string) (map[string]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history snapshot %s: %w", key, err)
	}

	entries := make(map[string]time.Time, len(raw))
	for id, value := range raw {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		entries[id] = time.UnixMilli(ms)
	}
	return entries, nil
}

// SaveAll persists every live store of the registry and returns how many were written
func (s *SnapshotStore) SaveAll(ctx context.Context, registry *Registry) (int, error) {
	saved := 0
	var firstErr error
	registry.Each(func(key string, store *Store) {
		if err := s.Save(ctx, key, store.Snapshot()); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		saved++
	})
	return saved, firstErr
}

// Restorer adapts Load for Registry.SetRestorer, bounding each load by timeout
func (s *SnapshotStore) Restorer(timeout time.Duration) Restorer {
	return func(key string) map[string]time.Time {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		entries, err := s.Load(ctx, key)
		if err != nil {
			log.Printf("[HISTORY] Snapshot restore for %s failed: %v", key, err)
			return nil
		}
		return entries
	}
}
