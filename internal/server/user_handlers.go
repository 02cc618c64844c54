package server

import (
	"splitpay/internal/models"
	"splitpay/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.Context(), currentUserID(c))
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username *string `json:"username"`
		PhotoURL *string `json:"photo_url"`
		PixKey   *string `json:"pix_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.Context(), currentUserID(c), service.ProfileUpdate{
		Username: req.Username,
		PhotoURL: req.PhotoURL,
		PixKey:   req.PixKey,
	})
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUser(c.Context(), id)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers handles GET /api/users/search?q=<prefix>
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	users, err := s.userService.SearchUsers(c.Context(), c.Query("q"), p.Limit)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}
