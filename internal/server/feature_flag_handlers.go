package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns the configured flag rules and their evaluation for the calling admin.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
