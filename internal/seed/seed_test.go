package seed

import (
	"testing"

	"splitpay/internal/database"
	"splitpay/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models()...))
	return db
}

func TestSeederRun(t *testing.T) {
	db := newSeedDB(t)
	s := NewSeeder(db)

	require.NoError(t, s.Run(Options{NumUsers: 10, ShouldClean: true}))

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	require.EqualValues(t, 10, userCount)

	// Friendship edges always come in mirrored pairs.
	var edges []models.FriendshipEdge
	require.NoError(t, db.Find(&edges).Error)
	for _, e := range edges {
		var reverse int64
		require.NoError(t, db.Model(&models.FriendshipEdge{}).
			Where("user_id = ? AND friend_id = ?", e.FriendID, e.UserID).
			Count(&reverse).Error)
		require.EqualValues(t, 1, reverse, "edge %d->%d has no mirror", e.UserID, e.FriendID)
	}

	// Debts only exist between friends.
	var debts []models.Debt
	require.NoError(t, db.Find(&debts).Error)
	for _, d := range debts {
		var edge int64
		require.NoError(t, db.Model(&models.FriendshipEdge{}).
			Where("user_id = ? AND friend_id = ?", d.CreditorID, d.DebtorID).
			Count(&edge).Error)
		require.EqualValues(t, 1, edge, "debt %d between non-friends", d.ID)
		require.Positive(t, d.AmountCents)
	}
}

func TestSeederClearAll(t *testing.T) {
	db := newSeedDB(t)
	s := NewSeeder(db)

	require.NoError(t, s.Run(Options{NumUsers: 5}))
	require.NoError(t, s.ClearAll())

	for _, model := range []any{&models.User{}, &models.FriendshipEdge{}, &models.FriendRequest{}, &models.Debt{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		require.Zero(t, n)
	}
}
