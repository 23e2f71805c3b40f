package services

import (
	"fmt"
	"strings"

	"moodtunes/internal/models"
)

const maxDescriptorQueries = 4

// QueryBuilder turns a mood, language and free-text preference into an
// ordered list of search queries, most targeted first.
type QueryBuilder struct {
	keywords *KeywordTable
}

// NewQueryBuilder creates a builder over the given keyword table.
// A nil table means the embedded default.
func NewQueryBuilder(keywords *KeywordTable) *QueryBuilder {
	if keywords == nil {
		keywords = DefaultKeywordTable()
	}
	return &QueryBuilder{keywords: keywords}
}

// Keywords exposes the table the builder reads from
func (b *QueryBuilder) Keywords() *KeywordTable {
	return b.keywords
}

// BuildQueries never fails: unknown moods and languages fall back to
// neutral and english before any query text is produced.
func (b *QueryBuilder) BuildQueries(mood, language, preference string) []string {
	m := models.NormalizeMoodOrDefault(mood)
	lang := models.NormalizeLanguageOrDefault(language)
	pref := strings.TrimSpace(preference)

	descriptors := b.keywords.Lookup(m, lang)
	if len(descriptors) > maxDescriptorQueries {
		descriptors = descriptors[:maxDescriptorQueries]
	}

	queries := make([]string, 0, len(descriptors)+4)
	for _, desc := range descriptors {
		queries = append(queries, fmt.Sprintf("%s music %s", desc, lang))
	}

	if pref != "" {
		queries = append(queries,
			fmt.Sprintf("%s %s songs %s", pref, m, lang),
			fmt.Sprintf("best %s %s music", pref, lang),
			fmt.Sprintf("%s playlist %s", pref, lang),
		)
	} else {
		queries = append(queries,
			fmt.Sprintf("best %s songs %s", m, lang),
			fmt.Sprintf("%s playlist %s", m, lang),
			fmt.Sprintf("top %s music %s", m, lang),
			fmt.Sprintf("%s %s hits", lang, m),
		)
	}

	return queries
}
