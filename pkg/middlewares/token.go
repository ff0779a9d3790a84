package middlewares

import (
	"strings"

	"secure_messaging_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// JWTMiddleware validates JWT from the Authorization header, the auth query or the auth cookie
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := bearer(c.Get(fiber.HeaderAuthorization))

		// websocket clients can't set headers from the browser
		if tokenStr == "" {
			tokenStr = c.Query(QueryToken)
		}
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := token.ParseJWT(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenRole, claims.Role)

		return c.Next()
	}
}

// MemberID read the caller id set by JWTMiddleware, empty when absent
func MemberID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenMemberID).(string)
	return id
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
