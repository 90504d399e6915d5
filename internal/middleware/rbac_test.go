package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func roleApp(role string, guard fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != "" {
			c.Locals(LocalUserRole, role)
		}
		return c.Next()
	})
	app.Use(guard)
	app.Get("/exercises", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		role   string
		guard  fiber.Handler
		status int
	}{
		{name: "lecturer allowed", role: "lecturer", guard: RequireLecturer(), status: fiber.StatusOK},
		{name: "teacher alias allowed", role: "Teacher", guard: RequireLecturer(), status: fiber.StatusOK},
		{name: "admin allowed", role: "admin", guard: RequireLecturer(), status: fiber.StatusOK},
		{name: "student rejected from lecturer routes", role: "student", guard: RequireLecturer(), status: fiber.StatusForbidden},
		{name: "student allowed", role: "student", guard: RequireStudent(), status: fiber.StatusOK},
		{name: "lecturer rejected from student routes", role: "lecturer", guard: RequireStudent(), status: fiber.StatusForbidden},
		{name: "missing role rejected", role: "", guard: RequireRole("student", "lecturer"), status: fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := roleApp(tc.role, tc.guard).Test(httptest.NewRequest(http.MethodGet, "/exercises", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
