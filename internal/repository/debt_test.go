package repository

import (
	"context"
	"testing"
	"time"

	"splitpay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebtRepository(t *testing.T) {
	repo := NewDebtRepository(testDB)
	ctx := context.Background()

	creditor := createTestUser(t, "cred")
	debtor := createTestUser(t, "debt")

	d1 := &models.Debt{CreditorID: creditor.ID, DebtorID: debtor.ID, AmountCents: 1500, Description: "lunch"}
	d2 := &models.Debt{CreditorID: creditor.ID, DebtorID: debtor.ID, AmountCents: 2500, Description: "cab"}
	d3 := &models.Debt{CreditorID: debtor.ID, DebtorID: creditor.ID, AmountCents: 1000, Description: "coffee"}
	require.NoError(t, repo.Create(ctx, d1))
	require.NoError(t, repo.Create(ctx, d2))
	require.NoError(t, repo.Create(ctx, d3))

	t.Run("SumUnpaid is directional", func(t *testing.T) {
		owed, err := repo.SumUnpaid(ctx, creditor.ID, debtor.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4000), owed)

		owes, err := repo.SumUnpaid(ctx, debtor.ID, creditor.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), owes)
	})

	t.Run("SumUnpaid with no rows is zero", func(t *testing.T) {
		stranger := createTestUser(t, "none")
		total, err := repo.SumUnpaid(ctx, creditor.ID, stranger.ID)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("ListBetween covers both directions", func(t *testing.T) {
		debts, err := repo.ListBetween(ctx, debtor.ID, creditor.ID, false)
		require.NoError(t, err)
		assert.Len(t, debts, 3)
	})

	t.Run("MarkPaid excludes debt from unpaid views", func(t *testing.T) {
		now := time.Now()
		d1.Paid = true
		d1.PaidAt = &now
		require.NoError(t, repo.MarkPaid(ctx, d1))

		owed, err := repo.SumUnpaid(ctx, creditor.ID, debtor.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2500), owed)

		unpaid, err := repo.ListBetween(ctx, creditor.ID, debtor.ID, false)
		require.NoError(t, err)
		assert.Len(t, unpaid, 2)

		all, err := repo.ListBetween(ctx, creditor.ID, debtor.ID, true)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("ListForUser includes both roles", func(t *testing.T) {
		debts, err := repo.ListForUser(ctx, creditor.ID, true)
		require.NoError(t, err)
		assert.Len(t, debts, 3)
	})

	t.Run("GetByID missing debt", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999999)
		assert.Error(t, err)
	})
}
