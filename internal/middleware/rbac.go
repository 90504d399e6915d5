package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/erducate-api/internal/utils"
)

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := canonicalRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[UserRole(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireLecturer admits lecturers and administrators.
func RequireLecturer() fiber.Handler {
	return RequireRole("lecturer", "admin")
}

// RequireStudent admits students only.
func RequireStudent() fiber.Handler {
	return RequireRole("student")
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return canonicalRole(v)
	case fmt.Stringer:
		return canonicalRole(v.String())
	default:
		return canonicalRole(fmt.Sprintf("%v", value))
	}
}
