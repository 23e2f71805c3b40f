package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"moodtunes/internal/emotion"
	"moodtunes/internal/logging"
	"moodtunes/internal/middleware"
	"moodtunes/internal/models"
	"moodtunes/internal/services"
)

const defaultRecommendTimeout = 2 * time.Minute

// MusicHandler serves the recommendation API
type MusicHandler struct {
	service *services.RecommendationService
	timeout time.Duration
}

// NewMusicHandler creates a handler. timeout bounds one recommendation,
// including retries and backoff; zero uses two minutes.
func NewMusicHandler(service *services.RecommendationService, timeout time.Duration) *MusicHandler {
	if timeout <= 0 {
		timeout = defaultRecommendTimeout
	}
	return &MusicHandler{service: service, timeout: timeout}
}

// GetMusic handles POST /api/music
func (h *MusicHandler) GetMusic(c *fiber.Ctx) error {
	var req models.MusicRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sessionID := middleware.GetSessionID(c)
	logger := logging.WithRequest(requestID(c), sessionID)

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	start := time.Now()
	resp, err := h.service.GetMusic(ctx, sessionID, &req)
	if err != nil {
		logger.Warn("recommendation failed", "error", err, "manual_mood", req.ManualMood, "language", req.Language)
		return writeServiceError(c, err)
	}

	logging.WithRecommendation(logger, resp.Mood.String(), resp.Language.String(), resp.TotalCount).Info("recommendation served",
		"duration_ms", time.Since(start).Milliseconds(),
		"queries_tried", resp.SearchStats.QueriesTried,
		"fallback_used", resp.SearchStats.FallbackUsed,
	)
	return c.JSON(resp)
}

// DetectMood handles POST /api/mood/detect
func (h *MusicHandler) DetectMood(c *fiber.Ctx) error {
	var req models.DetectMoodRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	resp, err := h.service.DetectMood(ctx, &req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(resp)
}

// GetStatus handles GET /api/status
func (h *MusicHandler) GetStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.GetStatus(middleware.GetSessionID(c)))
}

// ClearSession handles POST /api/session/clear
func (h *MusicHandler) ClearSession(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	resp := h.service.ClearSession(sessionID)
	logging.WithRequest(requestID(c), sessionID).Info("history cleared")
	return c.JSON(resp)
}

// GetKeywords handles GET /api/moods/:mood/keywords?language=
func (h *MusicHandler) GetKeywords(c *fiber.Ctx) error {
	resp, err := h.service.Keywords(c.Params("mood"), c.Query("language"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(resp)
}

// writeServiceError maps service errors to HTTP responses. Upstream search
// failures never reach here; they only shrink the batch.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidMood):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":           "Invalid mood",
			"supported_moods": models.MoodStrings(),
		})
	case errors.Is(err, models.ErrInvalidLanguage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":               "Invalid language",
			"supported_languages": models.LanguageStrings(),
		})
	case errors.Is(err, emotion.ErrInvalidImage), errors.Is(err, services.ErrMissingInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrNoResults):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No music found for the detected mood",
		})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Recommendation timed out, please try again",
		})
	}

	log.Printf("❌ [API] Unexpected error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Error getting recommendations",
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
