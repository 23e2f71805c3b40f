package models

import (
	"errors"
	"fmt"
	"strings"
)

// Language is the language a recommendation is searched in
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
	LanguageBengali Language = "bengali"
)

// DefaultLanguage is substituted for unsupported languages
const DefaultLanguage = LanguageEnglish

// SupportedLanguages lists languages in a stable order
var SupportedLanguages = []Language{
	LanguageEnglish,
	LanguageHindi,
	LanguageBengali,
}

// ErrInvalidLanguage is returned by ParseLanguage for unsupported languages
var ErrInvalidLanguage = errors.New("invalid language")

// ParseLanguage validates an explicitly supplied language, ignoring case.
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w %q: must be one of %v", ErrInvalidLanguage, s, LanguageStrings())
	}
	return l, nil
}

// NormalizeLanguageOrDefault maps unsupported languages to DefaultLanguage.
// A malformed language must never block a recommendation.
func NormalizeLanguageOrDefault(s string) Language {
	l, err := ParseLanguage(s)
	if err != nil {
		return DefaultLanguage
	}
	return l
}

// Valid reports whether l is supported
func (l Language) Valid() bool {
	for _, supported := range SupportedLanguages {
		if l == supported {
			return true
		}
	}
	return false
}

func (l Language) String() string {
	return string(l)
}

// LanguageStrings returns SupportedLanguages as plain strings
func LanguageStrings() []string {
	out := make([]string, len(SupportedLanguages))
	for i, l := range SupportedLanguages {
		out[i] = string(l)
	}
	return out
}
