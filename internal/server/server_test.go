package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mybuddy/internal/config"
	"mybuddy/internal/database"
	"mybuddy/internal/middleware"
	"mybuddy/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	s   *Server
	db  *gorm.DB
	app *fiber.App
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every pooled connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                     "test",
		Port:                    "0",
		JWTSecret:               testSecret,
		FeatureFlags:            "report_list_cache=on",
		ReportRateLimit:         20,
		ReportRateWindowSeconds: 60,
	}
}

func setupTestServer(t *testing.T, rdb *redis.Client) *testEnv {
	t.Helper()
	cfg := testConfig()
	middleware.InitMiddleware(cfg)

	db := setupTestDB(t)
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.hub.Shutdown(context.Background()) })

	return &testEnv{s: s, db: db, app: s.App()}
}

func (e *testEnv) createUser(t *testing.T, username string, admin bool) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		Enabled:  true,
		IsAdmin:  admin,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) createPost(t *testing.T, id, authorID uint) models.Post {
	t.Helper()
	post := models.Post{ID: id, Content: "hello newsfeed", UserID: authorID}
	require.NoError(t, e.db.Create(&post).Error)
	return post
}

func (e *testEnv) do(t *testing.T, method, target, body, token string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func mustToken(t *testing.T, userID uint) string {
	t.Helper()
	token, err := middleware.GenerateToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, raw []byte) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return body
}

func TestNewServerWithDeps_RequiresDatabase(t *testing.T) {
	_, err := NewServerWithDeps(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestLivenessCheck(t *testing.T) {
	env := setupTestServer(t, nil)
	resp, raw := env.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"status":"up"`)
}

func TestReadinessCheck(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		env := setupTestServer(t, nil)
		resp, raw := env.do(t, http.MethodGet, "/health/ready", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "healthy", body.Checks["database"])
		assert.Equal(t, "unavailable", body.Checks["redis"])
	})

	t.Run("with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		env := setupTestServer(t, rdb)
		for _, path := range []string{"/health/ready", "/health"} {
			resp, _ := env.do(t, http.MethodGet, path, "", "")
			assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
	})
}

func TestUnknownRouteKeepsStatus(t *testing.T) {
	env := setupTestServer(t, nil)
	resp, raw := env.do(t, http.MethodGet, "/no/such/route", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decodeError(t, raw).Error)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t, nil)
	env.do(t, http.MethodGet, "/post/newsfeed/report", "", "")

	resp, raw := env.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "mybuddy_reports_created_total")
}

func TestAdminRoutes(t *testing.T) {
	env := setupTestServer(t, nil)
	admin := env.createUser(t, "root", true)
	member := env.createUser(t, "bob", false)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"non-admin", mustToken(t, member.ID), http.StatusForbidden},
		{"unknown user", mustToken(t, 999), http.StatusForbidden},
		{"admin", mustToken(t, admin.ID), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodGet, "/api/admin/feature-flags", "", tt.token)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestGetFeatureFlags(t *testing.T) {
	env := setupTestServer(t, nil)
	admin := env.createUser(t, "root", true)

	resp, raw := env.do(t, http.MethodGet, "/api/admin/feature-flags", "", mustToken(t, admin.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "on", body.Raw["report_list_cache"])
	assert.True(t, body.Evaluated["report_list_cache"])
}
