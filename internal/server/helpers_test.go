package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"mybuddy/internal/models"
	"mybuddy/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"postId", "post ID"},
		{"confirmationTokenId", "confirmation token ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name   string
		param  string
		path   string
		status int
		msg    string
	}{
		{"valid", "id", "/items/42", http.StatusOK, ""},
		{"non-numeric", "id", "/items/abc", http.StatusBadRequest, "Invalid ID"},
		{"zero", "id", "/items/0", http.StatusBadRequest, "Invalid ID"},
		{"negative", "id", "/items/-1", http.StatusBadRequest, "Invalid ID"},
		{"overflow", "id", "/items/4294967296", http.StatusBadRequest, "Invalid ID"},
		{"named param", "postId", "/items/x", http.StatusBadRequest, "Invalid post ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			s := &Server{}
			app.Get("/items/:"+tt.param, func(c *fiber.Ctx) error {
				id, err := s.parseID(c, tt.param)
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.msg != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.msg, body.Error)
				assert.Equal(t, models.CodeValidation, body.Code)
			}
		})
	}
}

func TestRespondAppError(t *testing.T) {
	statusByCode := map[string]int{models.CodeNotFound: http.StatusNotAcceptable}

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"mapped code", models.NewNotFoundError("Post", 1), http.StatusNotAcceptable, models.CodeNotFound},
		{"wrapped mapped code", errors.Join(errors.New("ctx"), models.NewNotFoundError("Post", 1)), http.StatusNotAcceptable, models.CodeNotFound},
		{"unmapped code", models.NewGoneError("gone"), http.StatusInternalServerError, models.CodeInternal},
		{"plain error", errors.New("disk full"), http.StatusInternalServerError, models.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return respondAppError(c, tt.err, statusByCode)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestAdminRequired_LookupFailure(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	s := &Server{userRepo: repository.NewUserRepository(gormDB)}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnError(errors.New("connection refused"))

	app := fiber.New()
	app.Get("/admin", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	}, s.AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRequired_WithoutAuth(t *testing.T) {
	s := &Server{}
	app := fiber.New()
	app.Get("/admin", s.AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
