// Package history tracks which videos a listener has recently been shown so
// that the same content is not recommended twice in a short window.
package history

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultMaxAge             = 30 * time.Minute
	DefaultAutoCleanThreshold = 45
	DefaultTargetSize         = 25
)

// Config holds the eviction tunables of a Store
type Config struct {
	MaxAge             time.Duration // entries older than this are expired
	AutoCleanThreshold int           // size above which Compact runs
	TargetSize         int           // size kept after Compact
}

// DefaultConfig returns the standard 30m / 45 / 25 tunables
func DefaultConfig() Config {
	return Config{
		MaxAge:             DefaultMaxAge,
		AutoCleanThreshold: DefaultAutoCleanThreshold,
		TargetSize:         DefaultTargetSize,
	}
}

// Validate checks that the tunables describe a usable store
func (c Config) Validate() error {
	if c.MaxAge <= 0 {
		return fmt.Errorf("history max age must be positive, got %v", c.MaxAge)
	}
	if c.TargetSize <= 0 {
		return fmt.Errorf("history target size must be positive, got %d", c.TargetSize)
	}
	if c.TargetSize >= c.AutoCleanThreshold {
		return fmt.Errorf("history target size (%d) must be below auto-clean threshold (%d)",
			c.TargetSize, c.AutoCleanThreshold)
	}
	return nil
}

// Stats is a read-only snapshot of a Store
type Stats struct {
	TotalEntries       int `json:"total_entries"`
	AutoCleanThreshold int `json:"auto_clean_threshold"`
	TargetSize         int `json:"target_size"`
}

// Store maps external video IDs to the time they were last recommended.
//
// Expiry is lazy: every operation first drops entries older than MaxAge.
// Record compacts the store down to TargetSize once it grows past
// AutoCleanThreshold, so a store never holds more than threshold entries
// once Record returns. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	cfg     Config
	clock   clockwork.Clock
	entries map[string]time.Time
}

// NewStore creates an empty store. A nil clock means the wall clock.
func NewStore(cfg Config, clock clockwork.Clock) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		cfg:     cfg,
		clock:   clock,
		entries: make(map[string]time.Time),
	}, nil
}

// IsDuplicate reports whether id was recorded within the last MaxAge
func (s *Store) IsDuplicate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	_, ok := s.entries[id]
	return ok
}

// Record marks id as seen now, compacting if the store grew past the threshold
func (s *Store) Record(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	s.entries[id] = s.clock.Now()

	if len(s.entries) > s.cfg.AutoCleanThreshold {
		s.compactLocked()
	}
}

// Compact keeps only the TargetSize most recently seen entries
func (s *Store) Compact() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.compactLocked()
}

// Clear drops every entry
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]time.Time)
	log.Printf("[HISTORY] Cleared %d entries", n)
}

// Stats returns the current size and tunables after an expiry sweep
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return Stats{
		TotalEntries:       len(s.entries),
		AutoCleanThreshold: s.cfg.AutoCleanThreshold,
		TargetSize:         s.cfg.TargetSize,
	}
}

// Config returns the tunables the store was created with
func (s *Store) Config() Config {
	return s.cfg
}

// Snapshot copies the live entries
func (s *Store) Snapshot() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	out := make(map[string]time.Time, len(s.entries))
	for id, seen := range s.entries {
		out[id] = seen
	}
	return out
}

// Restore merges previously saved entries, keeping the newer timestamp
// for IDs present in both, then applies expiry and the size bound.
func (s *Store) Restore(entries map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, seen := range entries {
		if current, ok := s.entries[id]; !ok || seen.After(current) {
			s.entries[id] = seen
		}
	}
	s.expireLocked()
	if len(s.entries) > s.cfg.AutoCleanThreshold {
		s.compactLocked()
	}
}

func (s *Store) expireLocked() {
	now := s.clock.Now()
	for id, seen := range s.entries {
		if now.Sub(seen) > s.cfg.MaxAge {
			delete(s.entries, id)
		}
	}
}

func (s *Store) compactLocked() {
	if len(s.entries) <= s.cfg.TargetSize {
		return
	}

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	// Newest first; IDs break ties so one compaction is deterministic.
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := s.entries[ids[i]], s.entries[ids[j]]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ids[i] < ids[j]
	})

	before := len(ids)
	for _, id := range ids[s.cfg.TargetSize:] {
		delete(s.entries, id)
	}
	log.Printf("[HISTORY] Compacted %d -> %d entries", before, len(s.entries))
}
