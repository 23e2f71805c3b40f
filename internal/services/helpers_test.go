package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"moodtunes/internal/history"
	"moodtunes/internal/models"
)

// testVideoID returns a valid 11 character ID
func testVideoID(n int) string {
	return fmt.Sprintf("vid%08d", n)
}

// initialDataPage renders a results page in the structured JSON form
func initialDataPage(ids ...string) []byte {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, fmt.Sprintf(`{"videoRenderer":{"videoId":%q,"title":{"runs":[{"text":"Song %s"}]}}}`, id, id))
	}
	return []byte(`{"contents":{"twoColumnSearchResultsRenderer":{"primaryContents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[` +
		strings.Join(items, ",") + `]}}]}}}}}`)
}

// scriptedBackend answers each query through fn and records calls
type scriptedBackend struct {
	mu    sync.Mutex
	calls []string
	fn    func(call int, query string) ([]byte, error)
}

func (b *scriptedBackend) Search(_ context.Context, query string) ([]byte, error) {
	b.mu.Lock()
	call := len(b.calls)
	b.calls = append(b.calls, query)
	b.mu.Unlock()
	return b.fn(call, query)
}

func (b *scriptedBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

func newTestHistory(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.NewStore(history.DefaultConfig(), clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Failed to create history store: %v", err)
	}
	return store
}

// noWaitPolicy keeps retry semantics without sleeping
func noWaitPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultRetryMaxAttempts}
}

func identityShuffle([]models.VideoResult) {}
