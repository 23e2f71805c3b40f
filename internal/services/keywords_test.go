package services

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"moodtunes/internal/models"
)

func newKeywordTableFromYAML(t *testing.T, content string) (*KeywordTable, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write keywords file: %v", err)
	}
	return LoadKeywordTable(path)
}

func TestDefaultKeywordTableCoversAllPairs(t *testing.T) {
	table := DefaultKeywordTable()

	for _, mood := range models.SupportedMoods {
		for _, lang := range models.SupportedLanguages {
			words := table.Lookup(mood, lang)
			if len(words) < 4 {
				t.Errorf("Expected at least 4 keywords for %s/%s, got %d", mood, lang, len(words))
			}
		}
	}
}

func TestLookupFallsBack(t *testing.T) {
	table := DefaultKeywordTable()
	neutral := table.Lookup(models.MoodNeutral, models.LanguageEnglish)

	if got := table.Lookup(models.Mood("bored"), models.LanguageEnglish); !reflect.DeepEqual(got, neutral) {
		t.Errorf("Unknown mood should use neutral keywords, got %q", got)
	}
	if got := table.Lookup(models.MoodHappy, models.Language("klingon")); !reflect.DeepEqual(got, neutral) {
		t.Errorf("Unknown language should use neutral/english keywords, got %q", got)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	table := DefaultKeywordTable()

	words := table.Lookup(models.MoodHappy, models.LanguageEnglish)
	words[0] = "mutated"

	if table.Lookup(models.MoodHappy, models.LanguageEnglish)[0] == "mutated" {
		t.Error("Lookup should not expose the table's backing slice")
	}
}

func TestParseKeywordsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "happy: [unterminated"},
		{"unknown mood", "neutral:\n  english: [chill]\nbored:\n  english: [meh]\n"},
		{"unknown language", "neutral:\n  english: [chill]\n  klingon: [qapla]\n"},
		{"empty list", "neutral:\n  english: []\n"},
		{"missing neutral english", "happy:\n  english: [upbeat]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseKeywords([]byte(tt.content)); err == nil {
				t.Error("Expected parse error")
			}
		})
	}
}

func TestReloadFileKeepsTableOnError(t *testing.T) {
	table, err := newKeywordTableFromYAML(t, "neutral:\n  english: [chill, mellow]\n")
	if err != nil {
		t.Fatalf("Failed to load table: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("neutral:\n  english: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := table.ReloadFile(bad); err == nil {
		t.Fatal("Expected reload of invalid file to fail")
	}
	if err := table.ReloadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected reload of missing file to fail")
	}

	got := table.Lookup(models.MoodNeutral, models.LanguageEnglish)
	if !reflect.DeepEqual(got, []string{"chill", "mellow"}) {
		t.Errorf("Table should be unchanged after failed reloads, got %q", got)
	}
}

func TestWatchKeywordFileReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	if err := os.WriteFile(path, []byte("neutral:\n  english: [chill]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadKeywordTable(path)
	if err != nil {
		t.Fatalf("Failed to load table: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchKeywordFile(ctx, path, table) }()
	defer func() {
		cancel()
		<-done
	}()

	// Rewrite until the watcher picks a change up; it may not be registered yet.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(path, []byte("neutral:\n  english: [lofi, ambient]\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(700 * time.Millisecond)
		if got := table.Lookup(models.MoodNeutral, models.LanguageEnglish); len(got) == 2 && got[0] == "lofi" {
			return
		}
	}
	t.Errorf("Keyword table was not reloaded, still %q", table.Lookup(models.MoodNeutral, models.LanguageEnglish))
}
