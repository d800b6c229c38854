package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mybuddy/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func mustToken(t *testing.T, userID uint, ttl time.Duration) string {
	t.Helper()
	s, err := GenerateToken(testSecret, userID, ttl)
	require.NoError(t, err)
	return s
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	InitMiddleware(&config.Config{JWTSecret: testSecret})

	app.Get("/test", AuthRequired, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"userID": c.Locals("userID")})
	})

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
	}{
		{"Happy Path", "Bearer " + mustToken(t, 123, time.Hour), http.StatusOK, 123},
		{"Missing Header", "", http.StatusUnauthorized, 0},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, 0},
		{"Malformed Token", "Bearer malformed.token.here", http.StatusUnauthorized, 0},
		{"Expired Token", "Bearer " + mustToken(t, 123, -time.Hour), http.StatusUnauthorized, 0},
		{"Unsigned Token", "Bearer " + noneToken, http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
			} else {
				assert.Equal(t, "UNAUTHORIZED", body["code"])
			}
		})
	}
}

func TestWebSocketAuthRequired(t *testing.T) {
	app := fiber.New()
	InitMiddleware(&config.Config{JWTSecret: testSecret})

	app.Get("/ws-test", WebSocketAuthRequired, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		name           string
		tokenParam     string
		authHeader     string
		expectedStatus int
	}{
		{"Token via Query Param", mustToken(t, 1, time.Hour), "", http.StatusOK},
		{"Token via Header", "", "Bearer " + mustToken(t, 1, time.Hour), http.StatusOK},
		{"Missing Token", "", "", http.StatusUnauthorized},
		{"Invalid Token", "invalid-token", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/ws-test"
			if tt.tokenParam != "" {
				path += "?token=" + tt.tokenParam
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestParseToken_RejectsZeroSubject(t *testing.T) {
	token := mustToken(t, 0, time.Hour)
	_, err := ParseToken([]byte(testSecret), token)
	assert.Error(t, err)
}
