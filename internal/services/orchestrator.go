package services

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"

	"github.com/jonboulle/clockwork"

	"moodtunes/internal/models"
)

const (
	minResultsPerQuery = 3
	fallbackQueryCount = 3
)

// Fetcher runs a single query against the search backend
type Fetcher interface {
	Fetch(ctx context.Context, history HistoryTracker, query string, maxResults int, allowDuplicates bool) ([]models.VideoResult, error)
}

// Shuffler permutes a batch in place
type Shuffler func(videos []models.VideoResult)

// UniformShuffle is a Fisher-Yates shuffle on the global math/rand/v2 source
func UniformShuffle(videos []models.VideoResult) {
	rand.Shuffle(len(videos), func(i, j int) {
		videos[i], videos[j] = videos[j], videos[i]
	})
}

// Orchestrator turns a mood into a batch of fresh videos by walking the
// built query list with per-query retries and a duplicate-tolerant top-up
type Orchestrator struct {
	builder *QueryBuilder
	fetcher Fetcher
	policy  RetryPolicy
	clock   clockwork.Clock
	shuffle Shuffler
}

// OrchestratorOption customizes an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithRetryPolicy overrides the default 3 attempts / 2s base delay
func WithRetryPolicy(p RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.policy = p }
}

// WithClock sets the clock used for backoff waits
func WithClock(c clockwork.Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = c }
}

// WithShuffler replaces the uniform shuffle, mainly for tests
func WithShuffler(s Shuffler) OrchestratorOption {
	return func(o *Orchestrator) { o.shuffle = s }
}

func NewOrchestrator(builder *QueryBuilder, fetcher Fetcher, opts ...OrchestratorOption) *Orchestrator {
	if builder == nil {
		builder = NewQueryBuilder(nil)
	}
	o := &Orchestrator{
		builder: builder,
		fetcher: fetcher,
		policy:  DefaultRetryPolicy(),
		clock:   clockwork.NewRealClock(),
		shuffle: UniformShuffle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Builder exposes the query builder, e.g. for keyword lookups
func (o *Orchestrator) Builder() *QueryBuilder {
	return o.builder
}

// accumulator collects results in arrival order, keeping the first
// occurrence of each ID
type accumulator struct {
	videos []models.VideoResult
	seen   map[string]bool
	dups   int
}

func newAccumulator(capacity int) *accumulator {
	return &accumulator{
		videos: make([]models.VideoResult, 0, capacity),
		seen:   make(map[string]bool, capacity),
	}
}

func (a *accumulator) add(results []models.VideoResult) int {
	added := 0
	for _, v := range results {
		if a.seen[v.ID] {
			a.dups++
			continue
		}
		a.seen[v.ID] = true
		a.videos = append(a.videos, v)
		added++
	}
	return added
}

func (a *accumulator) len() int {
	return len(a.videos)
}

// Recommend never fails for lack of results; the batch may be empty. A
// cancelled ctx stops the walk and returns what was gathered so far. History
// writes made by completed fetches stay in place.
func (o *Orchestrator) Recommend(ctx context.Context, history HistoryTracker, mood, language, preference string, total int) models.RecommendationBatch {
	var stats models.SearchStats
	if total <= 0 {
		return models.RecommendationBatch{Videos: []models.VideoResult{}, Stats: stats}
	}

	queries := o.builder.BuildQueries(mood, language, preference)
	stats.QueriesGenerated = len(queries)
	acc := newAccumulator(total)

	log.Printf("🎵 [RECOMMEND] Fetching up to %d videos from %d queries (mood=%s, language=%s)",
		total, len(queries), models.NormalizeMoodOrDefault(mood), models.NormalizeLanguageOrDefault(language))

	for i, query := range queries {
		if acc.len() >= total || ctx.Err() != nil {
			break
		}
		target := perQueryTarget(total-acc.len(), len(queries)-i)
		results := o.fetchWithRetry(ctx, history, query, target, false, &stats)
		stats.QueriesTried++
		if len(results) == 0 {
			stats.SkippedQueries++
			continue
		}
		stats.FreshResults += acc.add(results)
	}

	if 2*acc.len() < total && ctx.Err() == nil {
		stats.FallbackUsed = true
		fallback := queries[:min(fallbackQueryCount, len(queries))]
		log.Printf("⚠️  [RECOMMEND] Only %d/%d fresh videos, re-running %d queries with duplicates allowed",
			acc.len(), total, len(fallback))

		for i, query := range fallback {
			if acc.len() >= total || ctx.Err() != nil {
				break
			}
			target := perQueryTarget(total-acc.len(), len(fallback)-i)
			results := o.fetchWithRetry(ctx, history, query, target, true, &stats)
			stats.FallbackResults += acc.add(results)
		}
	}

	stats.DuplicatesRemoved = acc.dups
	videos := acc.videos
	o.shuffle(videos)
	if len(videos) > total {
		videos = videos[:total]
	}

	if err := ctx.Err(); err != nil {
		log.Printf("⚠️  [RECOMMEND] Stopped early (%v) with %d videos", err, len(videos))
	} else {
		log.Printf("✅ [RECOMMEND] Returning %d/%d videos (tried %d queries, %d attempts, %d failures)",
			len(videos), total, stats.QueriesTried, stats.FetchAttempts, stats.FetchFailures)
	}

	return models.RecommendationBatch{Videos: videos, Stats: stats}
}

// fetchWithRetry applies the retry policy to one query. Errors and empty
// batches both count as a failed attempt.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, history HistoryTracker, query string, target int, allowDuplicates bool, stats *models.SearchStats) []models.VideoResult {
	attempts := o.policy.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		stats.FetchAttempts++
		results, err := o.fetcher.Fetch(ctx, history, query, target, allowDuplicates)
		if err == nil && len(results) > 0 {
			return results
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			stats.FetchFailures++
			log.Printf("⚠️  [RECOMMEND] Attempt %d/%d for %q failed: %v", attempt, attempts, query, err)
		} else {
			log.Printf("⚠️  [RECOMMEND] Attempt %d/%d for %q returned nothing", attempt, attempts, query)
		}

		if attempt == attempts {
			break
		}
		if err := o.policy.Wait(ctx, o.clock, attempt); err != nil {
			return nil
		}
	}
	return nil
}

func perQueryTarget(remaining, remainingQueries int) int {
	if remainingQueries < 1 {
		remainingQueries = 1
	}
	return max(minResultsPerQuery, remaining/remainingQueries)
}
