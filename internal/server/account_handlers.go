package server

import (
	"mybuddy/internal/models"

	"github.com/gofiber/fiber/v2"
)

var confirmAccountStatus = map[string]int{
	models.CodeValidation: fiber.StatusBadRequest,
	models.CodeNotFound:   fiber.StatusNotFound,
	models.CodeGone:       fiber.StatusGone,
}

// ConfirmAccount handles GET /user/confirm-account?token=
// @Summary Confirm an account
// @Tags users
// @Produce json
// @Param token query string true "Confirmation token"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 410 {object} models.ErrorResponse
// @Router /user/confirm-account [get]
func (s *Server) ConfirmAccount(c *fiber.Ctx) error {
	if _, err := s.accountService.ConfirmAccount(c.UserContext(), c.Query("token")); err != nil {
		return respondAppError(c, err, confirmAccountStatus)
	}
	return c.JSON(fiber.Map{"message": "Account confirmed"})
}
