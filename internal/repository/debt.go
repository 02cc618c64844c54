package repository

import (
	"context"
	"errors"

	"splitpay/internal/models"

	"gorm.io/gorm"
)

// DebtRepository defines persistence operations for debts between friends.
type DebtRepository interface {
	Create(ctx context.Context, debt *models.Debt) error
	GetByID(ctx context.Context, id uint) (*models.Debt, error)
	ListBetween(ctx context.Context, userA, userB uint, includePaid bool) ([]models.Debt, error)
	ListForUser(ctx context.Context, userID uint, includePaid bool) ([]models.Debt, error)
	SumUnpaid(ctx context.Context, creditorID, debtorID uint) (int64, error)
	MarkPaid(ctx context.Context, debt *models.Debt) error
}

type debtRepository struct {
	db *gorm.DB
}

// NewDebtRepository returns a new DebtRepository implementation.
func NewDebtRepository(db *gorm.DB) DebtRepository {
	return &debtRepository{db: db}
}

func (r *debtRepository) Create(ctx context.Context, debt *models.Debt) error {
	if err := r.db.WithContext(ctx).Create(debt).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *debtRepository) GetByID(ctx context.Context, id uint) (*models.Debt, error) {
	var debt models.Debt
	if err := r.db.WithContext(ctx).First(&debt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Debt", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &debt, nil
}

func (r *debtRepository) ListBetween(ctx context.Context, userA, userB uint, includePaid bool) ([]models.Debt, error) {
	var debts []models.Debt
	q := r.db.WithContext(ctx).
		Where("(creditor_id = ? AND debtor_id = ?) OR (creditor_id = ? AND debtor_id = ?)",
			userA, userB, userB, userA)
	if !includePaid {
		q = q.Where("paid = ?", false)
	}
	if err := q.Order("created_at DESC").Find(&debts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return debts, nil
}

func (r *debtRepository) ListForUser(ctx context.Context, userID uint, includePaid bool) ([]models.Debt, error) {
	var debts []models.Debt
	q := r.db.WithContext(ctx).
		Where("creditor_id = ? OR debtor_id = ?", userID, userID)
	if !includePaid {
		q = q.Where("paid = ?", false)
	}
	if err := q.Order("created_at DESC").Find(&debts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return debts, nil
}

// SumUnpaid totals outstanding debt owed by debtor to creditor, in cents.
func (r *debtRepository) SumUnpaid(ctx context.Context, creditorID, debtorID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Debt{}).
		Where("creditor_id = ? AND debtor_id = ? AND paid = ?", creditorID, debtorID, false).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return total, nil
}

func (r *debtRepository) MarkPaid(ctx context.Context, debt *models.Debt) error {
	if err := r.db.WithContext(ctx).Save(debt).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
