package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"moodtunes/internal/history"
)

// HistorySnapshotJob persists every live history store so recent
// recommendations survive a restart
type HistorySnapshotJob struct {
	registry  *history.Registry
	snapshots *history.SnapshotStore
	interval  time.Duration
	clock     clockwork.Clock

	mu      sync.Mutex
	lastRun time.Time
}

func NewHistorySnapshotJob(registry *history.Registry, snapshots *history.SnapshotStore, interval time.Duration, clock clockwork.Clock) *HistorySnapshotJob {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HistorySnapshotJob{
		registry:  registry,
		snapshots: snapshots,
		interval:  interval,
		clock:     clock,
	}
}

// Run saves all stores; a partial failure still saves the rest
func (j *HistorySnapshotJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.lastRun = j.clock.Now()
	j.mu.Unlock()

	saved, err := j.snapshots.SaveAll(ctx, j.registry)
	if err != nil {
		log.Printf("⚠️  [SNAPSHOT] Saved %d history stores before error: %v", saved, err)
		return err
	}
	log.Printf("💾 [SNAPSHOT] Saved %d history stores", saved)
	return nil
}

// GetNextRunTime returns when the next snapshot should be taken
func (j *HistorySnapshotJob) GetNextRunTime() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.lastRun.IsZero() {
		return j.clock.Now().Add(j.interval)
	}
	return j.lastRun.Add(j.interval)
}
