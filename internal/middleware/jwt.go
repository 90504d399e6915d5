package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/erducate-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
)

var roleAliases = map[string]string{
	"teacher":  "lecturer",
	"lecturer": "lecturer",
	"student":  "student",
	"admin":    "admin",
}

// JWTProtected validates HS256 bearer tokens issued by the authentication provider.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get(fiber.HeaderAuthorization)
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := extractUserID(claims)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token has no subject")
		}

		c.Locals(LocalUserID, userID)
		if role := extractRole(claims); role != "" {
			c.Locals(LocalUserRole, role)
		}

		return c.Next()
	}
}

// UserID returns the authenticated user id, or an empty string.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(LocalUserID).(string); ok {
		return id
	}
	return ""
}

// UserRole returns the normalised role of the authenticated user.
func UserRole(c *fiber.Ctx) string {
	return normalizeRoleValue(c.Locals(LocalUserRole))
}

func extractUserID(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "uid", "user_id", "id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			if v >= 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	return ""
}

func extractRole(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return canonicalRole(v)
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := canonicalRole(str); role != "" {
					return role
				}
			}
		}
	}
	return ""
}

func canonicalRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if alias, ok := roleAliases[role]; ok {
		return alias
	}
	return role
}
