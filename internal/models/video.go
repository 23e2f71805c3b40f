package models

import "net/url"

// UntitledVideo is used when a search result carries no readable title
const UntitledVideo = "Untitled"

const watchURLBase = "https://www.youtube.com/watch"

// VideoResult is a single recommended video. ID is the dedup key; URL is
// always rebuilt from it so tracking parameters never leak into identity.
type VideoResult struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// NewVideoResult builds a result with the canonical watch URL
func NewVideoResult(id, title string) VideoResult {
	if title == "" {
		title = UntitledVideo
	}
	return VideoResult{
		ID:    id,
		URL:   WatchURL(id),
		Title: title,
	}
}

// WatchURL returns the canonical watch URL for a video ID
func WatchURL(id string) string {
	return watchURLBase + "?v=" + url.QueryEscape(id)
}

// SearchStats describes how a batch was assembled
type SearchStats struct {
	QueriesGenerated  int  `json:"queries_generated"`
	QueriesTried      int  `json:"queries_tried"`
	FetchAttempts     int  `json:"fetch_attempts"`
	FetchFailures     int  `json:"fetch_failures"`
	SkippedQueries    int  `json:"skipped_queries"`
	FreshResults      int  `json:"fresh_results"`
	FallbackUsed      bool `json:"fallback_used"`
	FallbackResults   int  `json:"fallback_results"`
	DuplicatesRemoved int  `json:"duplicates_removed"`
	HistoryCleared    bool `json:"history_cleared"`
}

// RecommendationBatch is the shuffled, deduplicated output of one recommendation
type RecommendationBatch struct {
	Videos []VideoResult `json:"videos"`
	Stats  SearchStats   `json:"search_stats"`
}

// Len returns the number of videos in the batch
func (b RecommendationBatch) Len() int {
	return len(b.Videos)
}
