package middleware

import (
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionHeader carries the listener's session across requests
const SessionHeader = "X-Session-ID"

const sessionLocalsKey = "session_id"

var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Session reads X-Session-ID or issues a new one, stores it in Locals and
// echoes it on the response so clients can keep their history.
func Session() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Get(SessionHeader)
		if !validSessionID.MatchString(sessionID) {
			sessionID = uuid.New().String()
		}

		c.Locals(sessionLocalsKey, sessionID)
		c.Set(SessionHeader, sessionID)
		return c.Next()
	}
}

// GetSessionID returns the session resolved by Session, or "" when the
// middleware did not run
func GetSessionID(c *fiber.Ctx) string {
	sessionID, _ := c.Locals(sessionLocalsKey).(string)
	return sessionID
}
