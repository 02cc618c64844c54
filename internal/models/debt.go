// Package models contains data structures for the application's domain models.
package models

import "time"

// Debt represents one shared expense entry: the debtor owes the creditor
// AmountCents until the debt is marked paid. Amounts are integer cents;
// floating point never touches money.
type Debt struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreditorID  uint       `gorm:"not null;index" json:"creditor_id"`
	DebtorID    uint       `gorm:"not null;index" json:"debtor_id"`
	AmountCents int64      `gorm:"not null" json:"amount_cents"`
	Description string     `gorm:"type:varchar(255)" json:"description"`
	Paid        bool       `gorm:"not null;default:false;index" json:"paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Creditor User `gorm:"foreignKey:CreditorID" json:"creditor,omitempty"`
	Debtor   User `gorm:"foreignKey:DebtorID" json:"debtor,omitempty"`
}

// TableName specifies the table name for GORM
func (Debt) TableName() string {
	return "debts"
}

// BalanceSummary aggregates unpaid debts between two users from the
// perspective of the user who asked.
type BalanceSummary struct {
	TotalToReceive int64 `json:"total_to_receive"`
	TotalToPay     int64 `json:"total_to_pay"`
	FinalBalance   int64 `json:"final_balance"`
}

// Settled reports whether nothing is owed in either direction.
func (b BalanceSummary) Settled() bool {
	return b.TotalToReceive == 0 && b.TotalToPay == 0
}
