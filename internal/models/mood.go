package models

import (
	"errors"
	"fmt"
	"strings"
)

// Mood is one of the emotion labels the classifier can produce
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodSad      Mood = "sad"
	MoodAngry    Mood = "angry"
	MoodFear     Mood = "fear"
	MoodSurprise Mood = "surprise"
	MoodDisgust  Mood = "disgust"
	MoodNeutral  Mood = "neutral"
)

// DefaultMood is substituted for any label that is not recognized.
// Callers that auto-detect mood rely on this instead of failing the request.
const DefaultMood = MoodNeutral

// SupportedMoods lists moods in a stable order for status responses
var SupportedMoods = []Mood{
	MoodHappy,
	MoodSad,
	MoodAngry,
	MoodFear,
	MoodSurprise,
	MoodDisgust,
	MoodNeutral,
}

// ErrInvalidMood is returned by ParseMood for labels outside SupportedMoods
var ErrInvalidMood = errors.New("invalid mood")

// ParseMood validates an explicitly supplied mood label.
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w %q: must be one of %v", ErrInvalidMood, s, MoodStrings())
	}
	return m, nil
}

// NormalizeMoodOrDefault maps unknown labels to DefaultMood.
func NormalizeMoodOrDefault(s string) Mood {
	m, err := ParseMood(s)
	if err != nil {
		return DefaultMood
	}
	return m
}

// Valid reports whether m is a supported mood
func (m Mood) Valid() bool {
	for _, supported := range SupportedMoods {
		if m == supported {
			return true
		}
	}
	return false
}

func (m Mood) String() string {
	return string(m)
}

// MoodStrings returns SupportedMoods as plain strings
func MoodStrings() []string {
	out := make([]string, len(SupportedMoods))
	for i, m := range SupportedMoods {
		out[i] = string(m)
	}
	return out
}
