package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"moodtunes/internal/emotion"
	"moodtunes/internal/history"
	"moodtunes/internal/models"
)

const (
	DefaultMaxResults = 15
	MaxResultsLimit   = 50
)

var (
	// ErrNoResults means the batch stayed empty even after clearing history
	ErrNoResults = errors.New("no music found for the detected mood")

	// ErrMissingInput means neither a manual mood nor an image was supplied
	ErrMissingInput = errors.New("either image_data or manual_mood is required")
)

// MoodClassifier detects a mood from an image and reports its own health
type MoodClassifier interface {
	Classify(ctx context.Context, image []byte) emotion.Result
	Available() bool
	LastError() string
}

// RecommendationService is the API-facing layer: it validates requests,
// resolves the caller's history store and turns empty batches into
// ErrNoResults after one history reset
type RecommendationService struct {
	registry          *history.Registry
	orchestrator      *Orchestrator
	classifier        MoodClassifier
	metrics           *Metrics
	defaultMaxResults int
}

func NewRecommendationService(registry *history.Registry, orchestrator *Orchestrator, classifier MoodClassifier, metrics *Metrics, defaultMaxResults int) *RecommendationService {
	if defaultMaxResults <= 0 || defaultMaxResults > MaxResultsLimit {
		defaultMaxResults = DefaultMaxResults
	}
	return &RecommendationService{
		registry:          registry,
		orchestrator:      orchestrator,
		classifier:        classifier,
		metrics:           metrics,
		defaultMaxResults: defaultMaxResults,
	}
}

// GetMusic resolves the mood (manual first, then image) and returns a batch
// of fresh videos for the session
func (s *RecommendationService) GetMusic(ctx context.Context, sessionID string, req *models.MusicRequest) (*models.MusicResponse, error) {
	language, err := parseRequestLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	resp := &models.MusicResponse{
		Language:  language,
		SessionID: sessionID,
	}

	switch {
	case strings.TrimSpace(req.ManualMood) != "":
		mood, err := models.ParseMood(req.ManualMood)
		if err != nil {
			return nil, err
		}
		resp.Mood = mood
	case strings.TrimSpace(req.ImageData) != "":
		result, err := s.classify(ctx, req.ImageData)
		if err != nil {
			return nil, err
		}
		resp.Mood = result.Mood
		confidence := result.Confidence
		resp.Confidence = &confidence
		resp.Warning = result.Warning
	default:
		return nil, ErrMissingInput
	}

	total := s.maxResults(req.MaxResults)
	store := s.registry.Store(sessionID)

	if req.ClearHistoryFirst {
		store.Clear()
		s.metrics.RecordHistoryClear("refresh")
	}

	batch := s.orchestrator.Recommend(ctx, store, resp.Mood.String(), language.String(), req.CustomPreferences, total)
	if batch.Len() == 0 && ctx.Err() == nil {
		log.Printf("⚠️  [RECOMMEND] Empty batch for %s/%s, clearing history and retrying once", resp.Mood, language)
		store.Clear()
		s.metrics.RecordHistoryClear("empty_batch")
		batch = s.orchestrator.Recommend(ctx, store, resp.Mood.String(), language.String(), req.CustomPreferences, total)
		batch.Stats.HistoryCleared = true
	}

	s.metrics.RecordRecommendation(resp.Mood.String(), batch.Len(), batch.Stats.FallbackUsed)

	if batch.Len() == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoResults
	}

	resp.Videos = make([]models.VideoLink, 0, batch.Len())
	for _, v := range batch.Videos {
		resp.Videos = append(resp.Videos, models.VideoLink{URL: v.URL, Title: v.Title})
	}
	resp.TotalCount = len(resp.Videos)
	resp.SearchStats = batch.Stats
	return resp, nil
}

// DetectMood classifies an image without searching
func (s *RecommendationService) DetectMood(ctx context.Context, req *models.DetectMoodRequest) (*models.DetectMoodResponse, error) {
	if strings.TrimSpace(req.ImageData) == "" {
		return nil, fmt.Errorf("%w: image_data is required", emotion.ErrInvalidImage)
	}

	result, err := s.classify(ctx, req.ImageData)
	if err != nil {
		return nil, err
	}

	return &models.DetectMoodResponse{
		Emotion:             result.Mood,
		Confidence:          result.Confidence,
		ClassifierAvailable: s.classifier.Available(),
		Warning:             result.Warning,
	}, nil
}

func (s *RecommendationService) classify(ctx context.Context, imageData string) (emotion.Result, error) {
	image, err := emotion.DecodeImage(imageData)
	if err != nil {
		return emotion.Result{}, err
	}
	result := s.classifier.Classify(ctx, image)
	if result.Fallback() {
		s.metrics.RecordClassifierFallback()
	}
	return result, nil
}

// GetStatus reports classifier health and the session's history stats
func (s *RecommendationService) GetStatus(sessionID string) *models.StatusResponse {
	status := &models.StatusResponse{
		ClassifierAvailable: s.classifier.Available(),
		SupportedMoods:      models.MoodStrings(),
		SupportedLanguages:  models.LanguageStrings(),
		HistoryStats:        s.registry.Store(sessionID).Stats(),
		HistoryScope:        string(s.registry.Scope()),
		ActiveSessions:      s.registry.ActiveSessions(),
	}
	if !status.ClassifierAvailable {
		status.ClassifierError = s.classifier.LastError()
	}
	return status
}

// ClearSession empties the session's history
func (s *RecommendationService) ClearSession(sessionID string) *models.ClearSessionResponse {
	store := s.registry.Store(sessionID)
	store.Clear()
	s.metrics.RecordHistoryClear("session")

	return &models.ClearSessionResponse{
		HistoryStats: store.Stats(),
		SessionID:    sessionID,
	}
}

// Keywords returns the descriptor table entry used to build queries.
// An empty language means english.
func (s *RecommendationService) Keywords(mood, language string) (*models.KeywordsResponse, error) {
	m, err := models.ParseMood(mood)
	if err != nil {
		return nil, err
	}
	lang, err := parseRequestLanguage(language)
	if err != nil {
		return nil, err
	}

	return &models.KeywordsResponse{
		Mood:     m,
		Language: lang,
		Keywords: s.orchestrator.Builder().Keywords().Lookup(m, lang),
	}, nil
}

func (s *RecommendationService) maxResults(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultMaxResults
	case requested > MaxResultsLimit:
		return MaxResultsLimit
	}
	return requested
}

// parseRequestLanguage is strict for callers that name a language and
// defaults to english when they do not
func parseRequestLanguage(s string) (models.Language, error) {
	if strings.TrimSpace(s) == "" {
		return models.DefaultLanguage, nil
	}
	return models.ParseLanguage(s)
}
