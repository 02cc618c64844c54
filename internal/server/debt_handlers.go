package server

import (
	"github.com/gofiber/fiber/v2"
)

// CreateDebt handles POST /api/debts. The caller is always the creditor.
func (s *Server) CreateDebt(c *fiber.Ctx) error {
	var body struct {
		DebtorID    uint   `json:"debtor_id"`
		AmountCents int64  `json:"amount_cents"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	debt, err := s.debtService.CreateDebt(c.Context(), currentUserID(c), body.DebtorID, body.AmountCents, body.Description)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(debt)
}

// ListMyDebts handles GET /api/debts. Paid debts are excluded unless
// include_paid=true.
func (s *Server) ListMyDebts(c *fiber.Ctx) error {
	includePaid := c.Query("include_paid") == "true"
	debts, err := s.debtService.ListForUser(c.Context(), currentUserID(c), includePaid)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"debts": debts})
}

// GetDebtsWith handles GET /api/debts/with/:userId. Paid debts are
// excluded unless include_paid=true.
func (s *Server) GetDebtsWith(c *fiber.Ctx) error {
	friendID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	includePaid := c.Query("include_paid") == "true"
	debts, err := s.debtService.ListDebtsWith(c.Context(), currentUserID(c), friendID, includePaid)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(fiber.Map{"debts": debts})
}

// GetBalance handles GET /api/debts/balance/:userId
func (s *Server) GetBalance(c *fiber.Ctx) error {
	friendID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	balance, err := s.debtService.BalanceBetween(c.Context(), currentUserID(c), friendID)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(balance)
}

// MarkDebtPaid handles POST /api/debts/:debtId/paid. Only the creditor
// may settle a debt.
func (s *Server) MarkDebtPaid(c *fiber.Ctx) error {
	debtID, err := s.parseID(c, "debtId")
	if err != nil {
		return nil
	}

	debt, err := s.debtService.MarkPaid(c.Context(), currentUserID(c), debtID)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(debt)
}

// SettleUp handles POST /api/debts/settle/:userId. Returns a Pix BR Code
// covering everything the caller owes the friend.
func (s *Server) SettleUp(c *fiber.Ctx) error {
	friendID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	settlement, err := s.debtService.SettleUp(c.Context(), currentUserID(c), friendID)
	if err != nil {
		return respondForAppError(c, err)
	}
	return c.JSON(settlement)
}
