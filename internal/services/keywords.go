package services

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"moodtunes/internal/models"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

type keywordMap map[models.Mood]map[models.Language][]string

// KeywordTable holds the descriptive search keywords per mood and language.
// It can be swapped at runtime when the override file changes.
type KeywordTable struct {
	mu      sync.RWMutex
	entries keywordMap
}

// DefaultKeywordTable returns the embedded table
func DefaultKeywordTable() *KeywordTable {
	entries, err := parseKeywords(defaultKeywordsYAML)
	if err != nil {
		// The embedded document is covered by tests; a failure here is a build defect.
		panic(fmt.Sprintf("embedded keywords.yaml is invalid: %v", err))
	}
	return &KeywordTable{entries: entries}
}

// LoadKeywordTable reads a table from a YAML file
func LoadKeywordTable(path string) (*KeywordTable, error) {
	table := &KeywordTable{}
	if err := table.ReloadFile(path); err != nil {
		return nil, err
	}
	return table, nil
}

// ReloadFile replaces the table contents with the YAML file at path.
// The current contents are kept if the file is unreadable or invalid.
func (t *KeywordTable) ReloadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read keywords file: %w", err)
	}

	entries, err := parseKeywords(data)
	if err != nil {
		return fmt.Errorf("failed to parse keywords file %s: %w", path, err)
	}

	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()

	log.Printf("[KEYWORDS] Loaded keyword table from %s (%d moods)", path, len(entries))
	return nil
}

// Lookup returns the keywords for mood and language. Unknown moods use the
// neutral set and languages missing under a mood use neutral/english.
func (t *KeywordTable) Lookup(mood models.Mood, language models.Language) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byLang, ok := t.entries[mood]
	if !ok {
		byLang = t.entries[models.DefaultMood]
	}

	words, ok := byLang[language]
	if !ok {
		words = t.entries[models.DefaultMood][models.DefaultLanguage]
	}

	out := make([]string, len(words))
	copy(out, words)
	return out
}

func parseKeywords(data []byte) (keywordMap, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	entries := make(keywordMap, len(raw))
	for moodName, byLang := range raw {
		mood, err := models.ParseMood(moodName)
		if err != nil {
			return nil, err
		}
		entries[mood] = make(map[models.Language][]string, len(byLang))
		for langName, words := range byLang {
			lang, err := models.ParseLanguage(langName)
			if err != nil {
				return nil, err
			}
			if len(words) == 0 {
				return nil, fmt.Errorf("no keywords for %s/%s", mood, lang)
			}
			entries[mood][lang] = words
		}
	}

	if len(entries[models.DefaultMood][models.DefaultLanguage]) == 0 {
		return nil, fmt.Errorf("table must define %s/%s keywords", models.DefaultMood, models.DefaultLanguage)
	}
	return entries, nil
}
