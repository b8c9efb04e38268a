package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// UserID returns the authenticated caller set by RequireAuth.
func UserID(c *fiber.Ctx) string {
	v, _ := c.Locals(userIDKey).(string)
	return v
}

// RequireAuth accepts an HS256 bearer token whose subject is the user id.
// The token may also arrive as access_token for EventSource clients, which
// cannot set headers.
func RequireAuth(secret []byte) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *fiber.Ctx) error {
		raw := c.Query("access_token")
		if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
			raw = strings.TrimPrefix(auth, "Bearer ")
		}
		if raw == "" {
			return unauthorized(c, "missing bearer token")
		}

		token, err := parser.Parse(raw, func(*jwt.Token) (any, error) { return secret, nil })
		if err != nil || !token.Valid {
			return unauthorized(c, "invalid token")
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return unauthorized(c, "invalid claims")
		}
		c.Locals(userIDKey, sub)
		return c.Next()
	}
}
