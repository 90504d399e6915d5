package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func jwtApp() *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": UserID(c), "role": UserRole(c), "correlation": GetCorrelationID(c)})
	})
	return app
}

func TestJWTProtectedExtractsStringSubjectAndRole(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub":   "d6c1e0b2-student",
		"roles": []interface{}{"", "Student"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set(HeaderCorrelationID, "corr-123")

	resp, err := jwtApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "corr-123", resp.Header.Get(HeaderCorrelationID))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "d6c1e0b2-student", body["id"])
	require.Equal(t, "student", body["role"])
	require.Equal(t, "corr-123", body["correlation"])
}

func TestJWTProtectedAcceptsNumericUserID(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"user_id": 42, "role": "teacher"})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := jwtApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "42", body["id"])
	require.Equal(t, "lecturer", body["role"])
	require.NotEmpty(t, body["correlation"])
}

func TestJWTProtectedRejections(t *testing.T) {
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u1"})
	noSubject := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "student"})

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "empty token", header: "Bearer "},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong key", header: "Bearer " + wrongKey},
		{name: "no subject", header: "Bearer " + noSubject},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := jwtApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
