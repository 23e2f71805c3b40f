package services

import (
	"context"
	"errors"
	"log"
	"time"

	"moodtunes/internal/models"
)

// HistoryTracker is the slice of the history store the fetcher needs
type HistoryTracker interface {
	IsDuplicate(id string) bool
	Record(id string)
}

// ResultFetcher turns one query into at most maxResults videos, filtering
// against and writing to the caller's history
type ResultFetcher struct {
	backend SearchBackend
	limiter *RateLimiter
	metrics *Metrics
}

// NewResultFetcher creates a fetcher. The limiter is shared process-wide so
// every fetcher built from it respects the same outbound rate.
func NewResultFetcher(backend SearchBackend, limiter *RateLimiter, metrics *Metrics) *ResultFetcher {
	if limiter == nil {
		limiter = NewRateLimiter(1)
	}
	return &ResultFetcher{
		backend: backend,
		limiter: limiter,
		metrics: metrics,
	}
}

// Fetch issues exactly one search for query. A page that parses to nothing
// returns an empty slice and a nil error; transport failures return a
// *SearchError.
func (f *ResultFetcher) Fetch(ctx context.Context, history HistoryTracker, query string, maxResults int, allowDuplicates bool) ([]models.VideoResult, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	page, err := f.backend.Search(ctx, query)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		f.metrics.RecordSearch("error", elapsed)
		var searchErr *SearchError
		if errors.As(err, &searchErr) {
			return nil, err
		}
		// Backends that do not type their errors still count as transport failures
		return nil, &SearchError{Query: query, Err: err}
	}

	candidates := ParseSearchPage(page)
	if len(candidates) == 0 {
		f.metrics.RecordSearch("empty", elapsed)
		log.Printf("⚠️ [FETCHER] No candidates parsed for %q (%d bytes)", query, len(page))
		return nil, nil
	}
	f.metrics.RecordSearch("ok", elapsed)

	results := make([]models.VideoResult, 0, min(maxResults, len(candidates)))
	skipped := 0
	for _, c := range candidates {
		if len(results) >= maxResults {
			break
		}
		if !allowDuplicates && history.IsDuplicate(c.ID) {
			skipped++
			continue
		}
		history.Record(c.ID)
		results = append(results, models.NewVideoResult(c.ID, c.Title))
	}

	log.Printf("🔍 [FETCHER] %q: %d candidates, %d accepted, %d skipped as recent", query, len(candidates), len(results), skipped)
	return results, nil
}
