package service

import (
	"context"
	"strings"
	"time"

	"splitpay/internal/middleware"
	"splitpay/internal/models"
	"splitpay/internal/notifications"
	"splitpay/internal/repository"
	"splitpay/internal/settlement"
)

// Settlement is the payout payload returned by SettleUp: the outstanding
// amount plus a Pix copy-and-paste code addressed to the creditor.
type Settlement struct {
	CreditorID  uint   `json:"creditor_id"`
	DebtorID    uint   `json:"debtor_id"`
	AmountCents int64  `json:"amount_cents"`
	BRCode      string `json:"br_code"`
}

// DebtService provides debt bookkeeping between friends.
type DebtService struct {
	debtRepo   repository.DebtRepository
	userRepo   repository.UserRepository
	friendRepo repository.FriendRepository
	notifier   *notifications.Notifier
}

// NewDebtService returns a new DebtService.
func NewDebtService(
	debtRepo repository.DebtRepository,
	userRepo repository.UserRepository,
	friendRepo repository.FriendRepository,
	notifier *notifications.Notifier,
) *DebtService {
	return &DebtService{
		debtRepo:   debtRepo,
		userRepo:   userRepo,
		friendRepo: friendRepo,
		notifier:   notifier,
	}
}

// CreateDebt records that debtor owes creditor amountCents. The parties
// must be friends and the amount positive.
func (s *DebtService) CreateDebt(ctx context.Context, creditorID, debtorID uint, amountCents int64, description string) (*models.Debt, error) {
	if creditorID == debtorID {
		return nil, models.NewValidationError("Cannot owe yourself")
	}
	if amountCents <= 0 {
		return nil, models.NewValidationError("Amount must be positive")
	}

	friends, err := s.friendRepo.EdgeExists(ctx, creditorID, debtorID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, models.NewValidationError("Debts can only be created between friends")
	}

	debt := &models.Debt{
		CreditorID:  creditorID,
		DebtorID:    debtorID,
		AmountCents: amountCents,
		Description: strings.TrimSpace(description),
	}
	if err := s.debtRepo.Create(ctx, debt); err != nil {
		return nil, err
	}

	s.publish(ctx, debtorID, notifications.EventDebtCreated, debt)
	return debt, nil
}

// ListDebtsWith returns all debts between the caller and a friend.
func (s *DebtService) ListDebtsWith(ctx context.Context, userID, friendID uint, includePaid bool) ([]models.Debt, error) {
	return s.debtRepo.ListBetween(ctx, userID, friendID, includePaid)
}

// ListForUser returns every debt the user is party to, on either side.
func (s *DebtService) ListForUser(ctx context.Context, userID uint, includePaid bool) ([]models.Debt, error) {
	return s.debtRepo.ListForUser(ctx, userID, includePaid)
}

// BalanceBetween aggregates unpaid debts between two users from the
// first user's perspective, in cents.
func (s *DebtService) BalanceBetween(ctx context.Context, userID, friendID uint) (*models.BalanceSummary, error) {
	toReceive, err := s.debtRepo.SumUnpaid(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	toPay, err := s.debtRepo.SumUnpaid(ctx, friendID, userID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceSummary{
		TotalToReceive: toReceive,
		TotalToPay:     toPay,
		FinalBalance:   toReceive - toPay,
	}, nil
}

// MarkPaid settles a single debt. Only the creditor may do so.
func (s *DebtService) MarkPaid(ctx context.Context, callerID, debtID uint) (*models.Debt, error) {
	debt, err := s.debtRepo.GetByID(ctx, debtID)
	if err != nil {
		return nil, err
	}
	if debt.CreditorID != callerID {
		return nil, models.NewUnauthorizedError("Only the creditor can mark a debt as paid")
	}
	if debt.Paid {
		return nil, models.NewValidationError("Debt is already paid")
	}

	now := time.Now()
	debt.Paid = true
	debt.PaidAt = &now
	if err := s.debtRepo.MarkPaid(ctx, debt); err != nil {
		return nil, err
	}

	s.publish(ctx, debt.DebtorID, notifications.EventDebtPaid, debt)
	return debt, nil
}

// SettleUp computes what the caller owes a friend and returns a Pix BR
// Code built from the creditor's registered key.
func (s *DebtService) SettleUp(ctx context.Context, callerID, friendID uint) (*Settlement, error) {
	owed, err := s.debtRepo.SumUnpaid(ctx, friendID, callerID)
	if err != nil {
		return nil, err
	}
	if owed <= 0 {
		return nil, models.NewValidationError("Nothing to settle with this friend")
	}

	creditor, err := s.userRepo.GetByID(ctx, friendID)
	if err != nil {
		return nil, err
	}
	if creditor.PixKey == "" {
		return nil, models.NewValidationError("This friend has no Pix key registered")
	}

	code, err := settlement.BRCode(creditor.PixKey, creditor.Username, "", owed, "")
	if err != nil {
		return nil, err
	}
	return &Settlement{
		CreditorID:  friendID,
		DebtorID:    callerID,
		AmountCents: owed,
		BRCode:      code,
	}, nil
}

func (s *DebtService) publish(ctx context.Context, userID uint, eventType string, data any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishEvent(ctx, userID, eventType, data); err != nil {
		middleware.Logger.WarnContext(ctx, "debt event publish failed", "user_id", userID, "event", eventType, "error", err)
	}
}
