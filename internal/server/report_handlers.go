package server

import (
	"strings"

	"mybuddy/internal/models"
	"mybuddy/internal/observability"
	"mybuddy/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Intake rejections a client can fix are reported as 406.
var reportIntakeStatus = map[string]int{
	models.CodeValidation: fiber.StatusNotAcceptable,
	models.CodeNotFound:   fiber.StatusNotAcceptable,
}

// SaveReport handles POST /post/newsfeed/report/:postId
// @Summary Report a post
// @Description Flag a newsfeed post for moderation review
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body models.ReportInput true "Report"
// @Success 200
// @Failure 406 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /post/newsfeed/report/{id} [post]
func (s *Server) SaveReport(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var in models.ReportInput
	if err := c.BodyParser(&in); err != nil {
		observability.ReportsRejected.WithLabelValues(observability.RejectReasonValidation).Inc()
		return models.RespondWithValidationErrors(c, fiber.StatusNotAcceptable,
			[]string{"request body must be a JSON object"})
	}
	in.Message = strings.TrimSpace(in.Message)

	violations, err := validation.Struct(in)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	if len(violations) > 0 {
		observability.ReportsRejected.WithLabelValues(observability.RejectReasonValidation).Inc()
		return models.RespondWithValidationErrors(c, fiber.StatusNotAcceptable, violations)
	}

	report, err := s.reportService.SaveReport(ctx, c.Params("postId"), in)
	if err != nil {
		return respondAppError(c, err, reportIntakeStatus)
	}

	s.publishModerationEvent(ctx, EventReportCreated, reportPayload(report))
	return c.Status(fiber.StatusOK).Send(nil)
}

// GetReports handles GET /post/newsfeed/report
// @Summary List reports
// @Tags reports
// @Produce json
// @Success 200 {array} models.Report
// @Failure 500 {object} models.ErrorResponse
// @Router /post/newsfeed/report [get]
func (s *Server) GetReports(c *fiber.Ctx) error {
	reports, err := s.reportService.FindAll(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(reports)
}

// DeleteReport handles DELETE /post/newsfeed/report/:id
// @Summary Remove a report
// @Description Removing a report that does not exist succeeds
// @Tags reports
// @Param id path int true "Report ID"
// @Success 200
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /post/newsfeed/report/{id} [delete]
func (s *Server) DeleteReport(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	deleted, err := s.reportService.DeleteReport(ctx, id)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	if deleted {
		s.publishModerationEvent(ctx, EventReportDeleted, map[string]interface{}{"id": id})
	}
	return c.Status(fiber.StatusOK).Send(nil)
}
