package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mybuddy/internal/models"
	"mybuddy/internal/notifications"
	"mybuddy/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Moderation feed event types.
const (
	EventReportCreated = "report_created"
	EventReportDeleted = "report_deleted"
)

var feedLog = observability.NewWSLogger("moderation")

type moderationEvent struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// publishModerationEvent delivers an event to moderators on this replica and
// publishes it for the others. Failures are logged; the triggering request still succeeds.
func (s *Server) publishModerationEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	message, err := json.Marshal(moderationEvent{Type: eventType, Payload: payload})
	if err != nil {
		feedLog.LogError(ctx, 0, fmt.Errorf("marshal %s event: %w", eventType, err), eventType)
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(message)
	}
	if err := s.notifier.Publish(ctx, message); err != nil {
		feedLog.LogError(ctx, 0, fmt.Errorf("publish %s event: %w", eventType, err), eventType)
	}
}

func reportPayload(r *models.Report) map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"post_id":    r.PostID,
		"username":   r.Username,
		"message":    r.Message,
		"created_at": r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// upgradeRequired rejects plain HTTP requests on WebSocket routes.
func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return models.RespondWithError(c, fiber.StatusUpgradeRequired,
		&models.AppError{Message: "WebSocket upgrade required"})
}

// ModerationFeedHandler streams report events to an authenticated admin.
func (s *Server) ModerationFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			feedLog.LogError(context.Background(), userID, err, "register")
			reason, _ := json.Marshal(models.ErrorResponse{Error: err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, reason)
			code := websocket.CloseTryAgainLater
			if errors.Is(err, notifications.ErrHubClosed) {
				code = websocket.CloseGoingAway
			}
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// GetOnlineModerators handles GET /api/admin/moderators/online
func (s *Server) GetOnlineModerators(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"moderators": s.hub.OnlineModerators(c.UserContext()),
	})
}
