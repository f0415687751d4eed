package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware resolves the caller's identity from the session
// cookie and attaches it to the request context. It never rejects —
// endpoints that require a user gate on RequireUser below.
func UserContextMiddleware(sessions *SessionRegistry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookieName)
		if token != "" {
			if sess, ok := sessions.Lookup(token); ok {
				c.Locals("user_id", sess.ExternalID)
				c.Locals("username", sess.Username)
			}
		}
		return c.Next()
	}
}

// RequireUser rejects requests that carry no authenticated identity.
// Score submissions without a session must fail before any side effect.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			log.Printf("🚫 [AUTH] Unauthenticated request rejected: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthenticated — log in before submitting scores",
			})
		}
		return c.Next()
	}
}
