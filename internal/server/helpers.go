package server

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"mybuddy/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// The error message is derived from the parameter name ("id" -> "Invalid ID",
// "postId" -> "Invalid post ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 || uint64(id) > uint64(^uint32(0)) {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// respondAppError writes err with the status mapped from its AppError code.
// Errors without a mapped code are reported as 500.
func respondAppError(c *fiber.Ctx, err error, statusByCode map[string]int) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		if status, ok := statusByCode[appErr.Code]; ok {
			return models.RespondWithError(c, status, appErr)
		}
	}
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

func (s *Server) isAdminByUserID(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil && user.IsAdmin, nil
}

// AdminRequired rejects non-admin users with 403.
// Must be placed after an auth middleware so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		admin, err := s.isAdminByUserID(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}
		return c.Next()
	}
}
