package models

import "moodtunes/internal/history"

// MusicRequest is the body of POST /api/music
type MusicRequest struct {
	ImageData         string `json:"image_data"`  // base64, optionally a data URL
	ManualMood        string `json:"manual_mood"` // takes precedence over ImageData
	Language          string `json:"language"`
	CustomPreferences string `json:"custom_preferences"`
	MaxResults        int    `json:"max_results"`
	ClearHistoryFirst bool   `json:"clear_history_first"`
}

// VideoLink is the public shape of a recommended video
type VideoLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// MusicResponse is returned by POST /api/music
type MusicResponse struct {
	Videos      []VideoLink `json:"videos"`
	TotalCount  int         `json:"total_count"`
	Mood        Mood        `json:"mood"`
	Language    Language    `json:"language"`
	Confidence  *float64    `json:"confidence,omitempty"`
	Warning     string      `json:"warning,omitempty"`
	SearchStats SearchStats `json:"search_stats"`
	SessionID   string      `json:"session_id"`
}

// DetectMoodRequest is the body of POST /api/mood/detect
type DetectMoodRequest struct {
	ImageData string `json:"image_data"`
}

// DetectMoodResponse is returned by POST /api/mood/detect
type DetectMoodResponse struct {
	Emotion             Mood    `json:"emotion"`
	Confidence          float64 `json:"confidence"`
	ClassifierAvailable bool    `json:"classifier_available"`
	Warning             string  `json:"warning,omitempty"`
}

// StatusResponse is returned by GET /api/status
type StatusResponse struct {
	ClassifierAvailable bool          `json:"classifier_available"`
	ClassifierError     string        `json:"classifier_error,omitempty"`
	SupportedMoods      []string      `json:"supported_moods"`
	SupportedLanguages  []string      `json:"supported_languages"`
	HistoryStats        history.Stats `json:"history_stats"`
	HistoryScope        string        `json:"history_scope"`
	ActiveSessions      int           `json:"active_sessions"`
}

// ClearSessionResponse is returned by POST /api/session/clear
type ClearSessionResponse struct {
	HistoryStats history.Stats `json:"history_stats"`
	SessionID    string        `json:"session_id"`
}

// KeywordsResponse is returned by GET /api/moods/:mood/keywords
type KeywordsResponse struct {
	Mood     Mood     `json:"mood"`
	Language Language `json:"language"`
	Keywords []string `json:"keywords"`
}
