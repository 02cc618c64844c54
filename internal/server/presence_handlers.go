package server

import (
	"github.com/gofiber/fiber/v2"

	"splitpay/internal/models"
)

// GetPresence handles GET /api/presence/:userId. Users without a stored
// record are reported as offline rather than missing.
func (s *Server) GetPresence(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	record, err := s.tracker.Get(c.Context(), userID)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(record)
}

// UpdatePresenceStatus handles PUT /api/presence/status. The status only
// sticks while the caller has an active websocket session.
func (s *Server) UpdatePresenceStatus(c *fiber.Ctx) error {
	var body struct {
		Status models.PresenceStatus `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !body.Status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid presence status"})
	}

	if err := s.hub.Sessions().SetStatus(c.Context(), currentUserID(c), body.Status); err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"status": body.Status})
}
