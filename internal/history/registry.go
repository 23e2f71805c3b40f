package history

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	cache "github.com/patrickmn/go-cache"
)

// Scope decides how many stores a Registry hands out
type Scope string

const (
	// ScopeProcess shares one store between every request
	ScopeProcess Scope = "process"
	// ScopeSession gives each session ID its own store
	ScopeSession Scope = "session"
)

// ProcessKey is the key the shared store is persisted under
const ProcessKey = "process"

// ParseScope accepts "process" or "session"
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeProcess, ScopeSession:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown history scope %q (expected %q or %q)", s, ScopeProcess, ScopeSession)
}

// Restorer loads previously persisted entries for a store key
type Restorer func(key string) map[string]time.Time

// Registry owns the history stores of the process. Session stores are
// dropped after sitting idle for the configured TTL.
type Registry struct {
	scope    Scope
	cfg      Config
	clock    clockwork.Clock
	shared   *Store
	sessions *cache.Cache
	restorer Restorer
	mu       sync.Mutex
}

// NewRegistry creates a registry. idleTTL only applies to ScopeSession.
func NewRegistry(scope Scope, cfg Config, idleTTL time.Duration, clock clockwork.Clock) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	r := &Registry{
		scope: scope,
		cfg:   cfg,
		clock: clock,
	}

	switch scope {
	case ScopeProcess:
		shared, err := NewStore(cfg, clock)
		if err != nil {
			return nil, err
		}
		r.shared = shared
	case ScopeSession:
		if idleTTL <= 0 {
			return nil, fmt.Errorf("session idle TTL must be positive, got %v", idleTTL)
		}
		r.sessions = cache.New(idleTTL, idleTTL/2)
		r.sessions.OnEvicted(func(key string, _ interface{}) {
			log.Printf("[HISTORY] Session %s expired", key)
		})
	default:
		return nil, fmt.Errorf("unknown history scope %q", scope)
	}

	return r, nil
}

// SetRestorer installs a loader used when a store is first created.
// In process scope the shared store is restored immediately.
func (r *Registry) SetRestorer(fn Restorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restorer = fn

	if r.scope == ScopeProcess && fn != nil {
		if entries := fn(ProcessKey); len(entries) > 0 {
			r.shared.Restore(entries)
			log.Printf("[HISTORY] Restored %d entries into shared store", len(entries))
		}
	}
}

// Scope returns the registry scope
func (r *Registry) Scope() Scope {
	return r.scope
}

// Store returns the store for sessionID, creating it on first use.
// In process scope every session ID maps to the shared store.
func (r *Registry) Store(sessionID string) *Store {
	if r.scope == ScopeProcess {
		return r.shared
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions.Get(sessionID); ok {
		store := existing.(*Store)
		// Touch to push the idle deadline forward.
		r.sessions.SetDefault(sessionID, store)
		return store
	}

	// cfg was validated in NewRegistry so NewStore cannot fail here.
	store, _ := NewStore(r.cfg, r.clock)
	if r.restorer != nil {
		if entries := r.restorer(sessionID); len(entries) > 0 {
			store.Restore(entries)
		}
	}
	r.sessions.SetDefault(sessionID, store)
	return store
}

// Key returns the persistence key for sessionID under this scope
func (r *Registry) Key(sessionID string) string {
	if r.scope == ScopeProcess {
		return ProcessKey
	}
	return sessionID
}

// ActiveSessions counts live session stores (1 in process scope)
func (r *Registry) ActiveSessions() int {
	if r.scope == ScopeProcess {
		return 1
	}
	return r.sessions.ItemCount()
}

// Each calls fn for every live store with its persistence key
func (r *Registry) Each(fn func(key string, store *Store)) {
	if r.scope == ScopeProcess {
		fn(ProcessKey, r.shared)
		return
	}
	for key, item := range r.sessions.Items() {
		if store, ok := item.Object.(*Store); ok {
			fn(key, store)
		}
	}
}
