package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"moodtunes/internal/emotion"
	"moodtunes/internal/history"
	"moodtunes/internal/models"
)

type fakeClassifier struct {
	result    emotion.Result
	available bool
	lastErr   string
	images    [][]byte
}

func (f *fakeClassifier) Classify(_ context.Context, image []byte) emotion.Result {
	f.images = append(f.images, image)
	return f.result
}

func (f *fakeClassifier) Available() bool   { return f.available }
func (f *fakeClassifier) LastError() string { return f.lastErr }

type serviceFixture struct {
	svc        *RecommendationService
	registry   *history.Registry
	backend    *scriptedBackend
	classifier *fakeClassifier
}

func newServiceFixture(t *testing.T, scope history.Scope, fn func(call int, query string) ([]byte, error)) *serviceFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	registry, err := history.NewRegistry(scope, history.DefaultConfig(), time.Hour, clock)
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}

	backend := &scriptedBackend{fn: fn}
	fetcher := NewResultFetcher(backend, NewRateLimiter(0), nil)
	orchestrator := NewOrchestrator(NewQueryBuilder(nil), fetcher, WithRetryPolicy(noWaitPolicy()))
	classifier := &fakeClassifier{
		result:    emotion.Result{Mood: models.MoodHappy, Confidence: 88},
		available: true,
	}
	metrics := NewMetrics(prometheus.NewRegistry())

	return &serviceFixture{
		svc:        NewRecommendationService(registry, orchestrator, classifier, metrics, 0),
		registry:   registry,
		backend:    backend,
		classifier: classifier,
	}
}

// freshPages returns n new videos on every call
func freshPages(n int) func(int, string) ([]byte, error) {
	return func(call int, _ string) ([]byte, error) {
		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			ids = append(ids, testVideoID(call*100+i))
		}
		return initialDataPage(ids...), nil
	}
}

func TestGetMusicManualMood(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(5))

	resp, err := f.svc.GetMusic(context.Background(), "s1", &models.MusicRequest{
		ManualMood: "Sad",
		Language:   "HINDI",
		MaxResults: 10,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Mood != models.MoodSad || resp.Language != models.LanguageHindi {
		t.Errorf("Expected sad/hindi, got %s/%s", resp.Mood, resp.Language)
	}
	if resp.TotalCount != 10 || len(resp.Videos) != 10 {
		t.Errorf("Expected 10 videos, got %d (%d)", resp.TotalCount, len(resp.Videos))
	}
	if resp.Confidence != nil {
		t.Error("Manual mood should not report a confidence")
	}
	if len(f.classifier.images) != 0 {
		t.Error("Manual mood should not call the classifier")
	}
	if resp.SessionID != "s1" {
		t.Errorf("Expected session ID to be echoed, got %q", resp.SessionID)
	}
}

func TestGetMusicFromImage(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(5))
	f.classifier.result = emotion.Result{Mood: models.MoodNeutral, Confidence: emotion.FallbackConfidence, Warning: "classifier down"}

	image := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	resp, err := f.svc.GetMusic(context.Background(), "", &models.MusicRequest{
		ImageData: "data:image/jpeg;base64," + image,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Mood != models.MoodNeutral || resp.Language != models.LanguageEnglish {
		t.Errorf("Expected neutral/english, got %s/%s", resp.Mood, resp.Language)
	}
	if resp.Confidence == nil || *resp.Confidence != emotion.FallbackConfidence {
		t.Errorf("Expected fallback confidence, got %v", resp.Confidence)
	}
	if resp.Warning == "" {
		t.Error("Classifier warning should be surfaced")
	}
	if resp.TotalCount != DefaultMaxResults {
		t.Errorf("Expected default of %d videos, got %d", DefaultMaxResults, resp.TotalCount)
	}
	if len(f.classifier.images) != 1 || len(f.classifier.images[0]) != 4 {
		t.Errorf("Expected decoded image to reach classifier, got %v", f.classifier.images)
	}
}

func TestGetMusicValidation(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(5))

	tests := []struct {
		name string
		req  models.MusicRequest
		want error
	}{
		{"invalid mood", models.MusicRequest{ManualMood: "bored"}, models.ErrInvalidMood},
		{"invalid language", models.MusicRequest{ManualMood: "happy", Language: "klingon"}, models.ErrInvalidLanguage},
		{"no input", models.MusicRequest{Language: "english"}, ErrMissingInput},
		{"bad image", models.MusicRequest{ImageData: "!!!"}, emotion.ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.GetMusic(context.Background(), "", &tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(f.backend.Calls()) != 0 {
		t.Error("Rejected requests should not search")
	}
}

func TestGetMusicEmptyBatchClearsAndRetries(t *testing.T) {
	// One recommend pass with nothing found costs 8 queries x 3 attempts
	// plus 3 widened queries x 3 attempts.
	const emptyPass = 8*3 + 3*3
	f := newServiceFixture(t, history.ScopeProcess, func(call int, q string) ([]byte, error) {
		if call < emptyPass {
			return []byte("<html></html>"), nil
		}
		return freshPages(5)(call, q)
	})
	store := f.registry.Store("")
	store.Record("stale-entry")

	resp, err := f.svc.GetMusic(context.Background(), "", &models.MusicRequest{ManualMood: "happy", MaxResults: 5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !resp.SearchStats.HistoryCleared {
		t.Error("Expected history_cleared in stats")
	}
	if store.IsDuplicate("stale-entry") {
		t.Error("History should have been cleared before the retry")
	}
	if resp.TotalCount != 5 {
		t.Errorf("Expected 5 videos after retry, got %d", resp.TotalCount)
	}
}

func TestGetMusicNoResults(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, func(int, string) ([]byte, error) {
		return nil, &SearchError{Query: "q", StatusCode: 503, Err: errors.New("unavailable")}
	})

	_, err := f.svc.GetMusic(context.Background(), "", &models.MusicRequest{ManualMood: "angry"})
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("Expected ErrNoResults, got %v", err)
	}
}

func TestGetMusicClearHistoryFirst(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(5))
	store := f.registry.Store("")
	store.Record("seen-before")

	if _, err := f.svc.GetMusic(context.Background(), "", &models.MusicRequest{ManualMood: "happy", MaxResults: 3, ClearHistoryFirst: true}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if store.IsDuplicate("seen-before") {
		t.Error("clear_history_first should reset history before searching")
	}
}

func TestGetMusicMaxResultsClamped(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(20))

	resp, err := f.svc.GetMusic(context.Background(), "", &models.MusicRequest{ManualMood: "happy", MaxResults: 500})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.TotalCount != MaxResultsLimit {
		t.Errorf("Expected %d videos, got %d", MaxResultsLimit, resp.TotalCount)
	}
}

func TestClearSessionResetsHistory(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(5))

	resp, err := f.svc.GetMusic(context.Background(), "", &models.MusicRequest{ManualMood: "happy", MaxResults: 5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	store := f.registry.Store("")
	if store.Stats().TotalEntries == 0 {
		t.Fatal("Expected history entries after a recommendation")
	}

	cleared := f.svc.ClearSession("")
	if cleared.HistoryStats.TotalEntries != 0 {
		t.Errorf("Expected empty history, got %d entries", cleared.HistoryStats.TotalEntries)
	}
	for _, v := range resp.Videos {
		id := v.URL[len(v.URL)-11:]
		if store.IsDuplicate(id) {
			t.Errorf("Video %s should no longer be a duplicate", id)
		}
	}
}

func TestSessionScopeIsolation(t *testing.T) {
	f := newServiceFixture(t, history.ScopeSession, freshPages(5))

	if _, err := f.svc.GetMusic(context.Background(), "alice", &models.MusicRequest{ManualMood: "happy", MaxResults: 6}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := f.svc.GetStatus("alice").HistoryStats.TotalEntries; got != 6 {
		t.Errorf("Expected 6 entries for alice, got %d", got)
	}
	status := f.svc.GetStatus("bob")
	if status.HistoryStats.TotalEntries != 0 {
		t.Errorf("Expected bob's history to be empty, got %d", status.HistoryStats.TotalEntries)
	}
	if status.HistoryScope != string(history.ScopeSession) || status.ActiveSessions != 2 {
		t.Errorf("Unexpected scope info: %s, %d sessions", status.HistoryScope, status.ActiveSessions)
	}
}

func TestGetStatus(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(5))

	status := f.svc.GetStatus("")
	if !status.ClassifierAvailable || status.ClassifierError != "" {
		t.Errorf("Expected healthy classifier, got %+v", status)
	}
	if len(status.SupportedMoods) != 7 || len(status.SupportedLanguages) != 3 {
		t.Errorf("Unexpected supported sets: %v %v", status.SupportedMoods, status.SupportedLanguages)
	}
	if status.HistoryStats.AutoCleanThreshold != history.DefaultAutoCleanThreshold {
		t.Errorf("Expected threshold %d, got %d", history.DefaultAutoCleanThreshold, status.HistoryStats.AutoCleanThreshold)
	}

	f.classifier.available = false
	f.classifier.lastErr = "classifier unreachable"
	status = f.svc.GetStatus("")
	if status.ClassifierAvailable || status.ClassifierError != "classifier unreachable" {
		t.Errorf("Expected classifier error to be reported, got %+v", status)
	}
}

func TestDetectMood(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(5))

	resp, err := f.svc.DetectMood(context.Background(), &models.DetectMoodRequest{
		ImageData: base64.StdEncoding.EncodeToString([]byte("image")),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Emotion != models.MoodHappy || resp.Confidence != 88 || !resp.ClassifierAvailable {
		t.Errorf("Unexpected response %+v", resp)
	}

	if _, err := f.svc.DetectMood(context.Background(), &models.DetectMoodRequest{}); !errors.Is(err, emotion.ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage for empty image, got %v", err)
	}
}

func TestKeywords(t *testing.T) {
	f := newServiceFixture(t, history.ScopeProcess, freshPages(5))

	resp, err := f.svc.Keywords("happy", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Language != models.LanguageEnglish || len(resp.Keywords) == 0 || resp.Keywords[0] != "upbeat" {
		t.Errorf("Unexpected keywords response %+v", resp)
	}

	if _, err := f.svc.Keywords("bored", ""); !errors.Is(err, models.ErrInvalidMood) {
		t.Errorf("Expected ErrInvalidMood, got %v", err)
	}
	if _, err := f.svc.Keywords("happy", "klingon"); !errors.Is(err, models.ErrInvalidLanguage) {
		t.Errorf("Expected ErrInvalidLanguage, got %v", err)
	}
}
