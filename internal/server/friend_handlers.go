package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetFriends handles GET /api/friends
func (s *Server) GetFriends(c *fiber.Ctx) error {
	edges, err := s.friendService.GetFriends(c.Context(), currentUserID(c))
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"friends": edges})
}

// GetFriendIDs handles GET /api/friends/ids. Serves the denormalized
// Redis set when warm, edges otherwise.
func (s *Server) GetFriendIDs(c *fiber.Ctx) error {
	ids, err := s.friendService.GetFriendIDs(c.Context(), currentUserID(c))
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"friend_ids": ids})
}

// SendFriendRequest handles POST /api/friends/requests/:userId
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	req, err := s.friendService.SendFriendRequest(c.Context(), currentUserID(c), targetID)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetPendingRequests handles GET /api/friends/requests
func (s *Server) GetPendingRequests(c *fiber.Ctx) error {
	reqs, err := s.friendService.GetPendingRequests(c.Context(), currentUserID(c))
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"requests": reqs})
}

// GetSentRequests handles GET /api/friends/requests/sent
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	reqs, err := s.friendService.GetSentRequests(c.Context(), currentUserID(c))
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"requests": reqs})
}

// AcceptFriendRequest handles POST /api/friends/requests/:requestId/accept
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	req, err := s.friendService.AcceptFriendRequest(c.Context(), currentUserID(c), requestID)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(req)
}

// RejectFriendRequest handles POST /api/friends/requests/:requestId/reject
func (s *Server) RejectFriendRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	req, err := s.friendService.RejectFriendRequest(c.Context(), currentUserID(c), requestID)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(req)
}

// GetFriendshipStatus handles GET /api/friends/status/:userId
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	status, requestID, err := s.friendService.GetFriendshipStatus(c.Context(), currentUserID(c), targetID)
	if err != nil {
		return respondForAppError(c, err)
	}

	resp := fiber.Map{"status": status}
	if requestID != 0 {
		resp["request_id"] = requestID
	}
	return c.JSON(resp)
}

// RemoveFriend handles DELETE /api/friends/:userId. Removal is refused
// with 409 PENDING_DEBTS while unpaid debts remain between the pair.
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	friendID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.userService.RemoveFriend(c.Context(), currentUserID(c), friendID); err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Friend removed"})
}
