package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"moodtunes/internal/history"
)

// ClassifierStatus is the part of the classifier the health check reads
type ClassifierStatus interface {
	Available() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	classifier ClassifierStatus
	registry   *history.Registry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(classifier ClassifierStatus, registry *history.Registry) *HealthHandler {
	return &HealthHandler{classifier: classifier, registry: registry}
}

// Handle responds with server health status. A missing classifier degrades
// recommendations to neutral but does not make the server unhealthy.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":               "healthy",
		"classifier_available": h.classifier.Available(),
		"history_scope":        h.registry.Scope(),
		"active_sessions":      h.registry.ActiveSessions(),
		"timestamp":            time.Now().Format(time.RFC3339),
	})
}
