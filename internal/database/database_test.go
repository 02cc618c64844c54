package database

import (
	"testing"

	"splitpay/internal/config"
	"splitpay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}

	assert.NoError(t, configurePool(db, cfg))

	// Zero values fall back to defaults without error.
	assert.NoError(t, configurePool(db, &config.Config{}))
}

func TestMigrationCoversRegisteredModels(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(Models()...))

	for _, table := range []string{"users", "friend_requests", "friendship_edges", "debts"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}

	// The ordered-pair unique index backstops duplicate friend requests.
	assert.True(t, db.Migrator().HasIndex(&models.FriendRequest{}, "idx_friend_requests_pair"))
	assert.True(t, db.Migrator().HasIndex(&models.FriendshipEdge{}, "idx_friendship_edges_pair"))
}
