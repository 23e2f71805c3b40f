package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int           // Max requests per minute for all API endpoints
	GlobalAPIExpiration time.Duration // Expiration window

	// Recommendation limits (per IP). Each request can fan out into many
	// outbound searches, so this is much tighter than the global limit.
	MusicMax        int
	MusicExpiration time.Duration

	// Classifier-only requests (per IP)
	DetectMax        int
	DetectExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min = ~3.3 req/sec
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Recommendations: 30/min
		MusicMax:        30,
		MusicExpiration: 1 * time.Minute,

		// Mood detection: 60/min
		DetectMax:        60,
		DetectExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_MUSIC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MusicMax = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_DETECT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.DetectMax = n
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.MusicMax = 120
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return newIPLimiter("global", config.GlobalAPIMax, config.GlobalAPIExpiration, "Too many requests. Please slow down.")
}

// MusicRateLimiter guards POST /api/music
func MusicRateLimiter(config *RateLimitConfig) fiber.Handler {
	return newIPLimiter("music", config.MusicMax, config.MusicExpiration, "Too many recommendation requests. Please wait a moment.")
}

// DetectRateLimiter guards POST /api/mood/detect
func DetectRateLimiter(config *RateLimitConfig) fiber.Handler {
	return newIPLimiter("detect", config.DetectMax, config.DetectExpiration, "Too many mood detection requests.")
}

func newIPLimiter(name string, max int, expiration time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return name + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] %s limit reached for IP: %s on %s", name, c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       message,
				"retry_after": int(expiration.Seconds()),
			})
		},
		SkipFailedRequests:     false,
		SkipSuccessfulRequests: false,
	})
}
