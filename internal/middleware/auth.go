package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tuneedit/api/internal/auth"
	"github.com/tuneedit/api/pkg/response"
)

// AuthMiddleware checks session tokens.
type AuthMiddleware struct {
	issuer *auth.Issuer
}

func NewAuthMiddleware(issuer *auth.Issuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

// Authenticate validates the session token from the Authorization header,
// or from the token query parameter where headers cannot be set (websocket
// upgrades). A token only grants access to its own :sessionId.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := extractToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing authorization header")
		}
		if tokenString == "" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		claims, err := m.issuer.Validate(tokenString)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		if sessionID := c.Params("sessionId"); sessionID != "" && sessionID != claims.SessionID {
			return response.Forbidden(c, "Token does not belong to this session")
		}

		c.Locals("sessionId", claims.SessionID)
		c.Locals("chatId", claims.ChatID)
		c.Locals("claims", claims)

		return c.Next()
	}
}

func extractToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if q := c.Query("token"); q != "" {
			return q, true
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", true
	}
	return parts[1], true
}

// GetSessionID extracts the session ID from context
func GetSessionID(c *fiber.Ctx) string {
	if id, ok := c.Locals("sessionId").(string); ok {
		return id
	}
	return ""
}

// GetChatID extracts the chat ID from context
func GetChatID(c *fiber.Ctx) string {
	if id, ok := c.Locals("chatId").(string); ok {
		return id
	}
	return ""
}
