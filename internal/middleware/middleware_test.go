package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func newSessionApp() *fiber.App {
	app := fiber.New()
	app.Use(Session())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(GetSessionID(c))
	})
	return app
}

func TestSessionKeepsClientID(t *testing.T) {
	app := newSessionApp()

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(SessionHeader, "listener-42")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "listener-42" {
		t.Errorf("Expected session listener-42, got %q", body)
	}
	if resp.Header.Get(SessionHeader) != "listener-42" {
		t.Errorf("Expected session header to be echoed, got %q", resp.Header.Get(SessionHeader))
	}
}

func TestSessionIssuesID(t *testing.T) {
	app := newSessionApp()

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"invalid characters", "../../etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(SessionHeader, tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}

			body, _ := io.ReadAll(resp.Body)
			if len(body) != 36 {
				t.Errorf("Expected a generated UUID, got %q", body)
			}
			if resp.Header.Get(SessionHeader) != string(body) {
				t.Error("Generated session should be echoed in the header")
			}
		})
	}
}

func TestMusicRateLimiter(t *testing.T) {
	app := fiber.New()
	app.Post("/api/music", MusicRateLimiter(&RateLimitConfig{MusicMax: 2, MusicExpiration: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/api/music", nil))
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest("POST", "/api/music", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", resp.StatusCode)
	}
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RATE_LIMIT_MUSIC", "5")
	t.Setenv("RATE_LIMIT_DETECT", "not-a-number")

	cfg := LoadRateLimitConfig()
	if cfg.MusicMax != 5 {
		t.Errorf("Expected music limit 5, got %d", cfg.MusicMax)
	}
	if cfg.DetectMax != DefaultRateLimitConfig().DetectMax {
		t.Errorf("Malformed override should keep default, got %d", cfg.DetectMax)
	}
}
