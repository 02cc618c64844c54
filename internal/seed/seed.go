// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"splitpay/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	ShouldClean bool
}

var expenseDescriptions = []string{
	"Dinner at the churrascaria", "Uber to the airport", "Groceries",
	"Concert tickets", "Pizza night", "Beach house rent", "Bar tab",
	"Streaming subscription", "Birthday gift", "Gas for the road trip",
	"Football match tickets", "Coffee run", "Movie night", "Lunch",
}

// Seeder drives demo data creation against a Gorm DB.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a Seeder bound to the provided database.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// ClearAll removes all seeded data. Order matters because of foreign keys.
func (s *Seeder) ClearAll() error {
	log.Println("Cleaning database...")
	tables := []string{"debts", "friendship_edges", "friend_requests", "users"}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean table %s: %w", table, err)
		}
	}
	return nil
}

// SeedUsers creates n users with realistic profiles. Every user gets the
// password "password123" and roughly two thirds get a Pix key.
func (s *Seeder) SeedUsers(n int) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash seed password: %w", err)
	}

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		username := strings.ToLower(gofakeit.Username())
		user := models.User{
			Username: fmt.Sprintf("%s%d", username, i),
			Email:    fmt.Sprintf("%s%d@%s", username, i, gofakeit.DomainName()),
			Password: string(hash),
			PhotoURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		}
		if rand.Intn(3) != 0 {
			user.PixKey = user.Email
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", user.Username, err)
		}
		users = append(users, user)
	}

	log.Printf("Created %d users", len(users))
	return users, nil
}

// SeedFriendships links users into a social mesh: each user befriends a
// handful of others, and a smaller number of requests are left pending.
func (s *Seeder) SeedFriendships(users []models.User) (int, error) {
	if len(users) < 2 {
		return 0, nil
	}

	accepted := 0
	for i := range users {
		nFriends := 2 + rand.Intn(4)
		for j := 0; j < nFriends; j++ {
			other := rand.Intn(len(users))
			if other == i {
				continue
			}
			a, b := users[i], users[other]

			var existing int64
			s.db.Model(&models.FriendshipEdge{}).
				Where("user_id = ? AND friend_id = ?", a.ID, b.ID).
				Count(&existing)
			if existing > 0 {
				continue
			}

			err := s.db.Transaction(func(tx *gorm.DB) error {
				if err := tx.Create(&models.FriendshipEdge{
					UserID: a.ID, FriendID: b.ID,
					Username: a.Username, FriendUsername: b.Username,
				}).Error; err != nil {
					return err
				}
				return tx.Create(&models.FriendshipEdge{
					UserID: b.ID, FriendID: a.ID,
					Username: b.Username, FriendUsername: a.Username,
				}).Error
			})
			if err != nil {
				continue
			}
			accepted++
		}
	}

	// Leave some requests pending so the inbox has content.
	pending := 0
	for i := 0; i < len(users)/4; i++ {
		from := users[rand.Intn(len(users))]
		to := users[rand.Intn(len(users))]
		if from.ID == to.ID {
			continue
		}
		req := models.FriendRequest{
			FromUserID: from.ID, ToUserID: to.ID,
			FromUsername: from.Username, ToUsername: to.Username,
			FromPhotoURL: from.PhotoURL,
			Status:       models.FriendRequestStatusPending,
		}
		if err := s.db.Create(&req).Error; err == nil {
			pending++
		}
	}

	log.Printf("Created %d friendships, %d pending requests", accepted, pending)
	return accepted, nil
}

// SeedDebts creates shared expenses between existing friends. Roughly a
// third of the debts are already paid.
func (s *Seeder) SeedDebts(perUser int) (int, error) {
	var edges []models.FriendshipEdge
	if err := s.db.Find(&edges).Error; err != nil {
		return 0, fmt.Errorf("failed to load friendships: %w", err)
	}
	if len(edges) == 0 {
		return 0, nil
	}

	created := 0
	for i := 0; i < len(edges)*perUser/2; i++ {
		edge := edges[rand.Intn(len(edges))]
		debt := models.Debt{
			CreditorID:  edge.UserID,
			DebtorID:    edge.FriendID,
			AmountCents: int64(100 + rand.Intn(50000)),
			Description: expenseDescriptions[rand.Intn(len(expenseDescriptions))],
			CreatedAt:   time.Now().Add(-time.Duration(rand.Intn(60*24)) * time.Hour),
		}
		if rand.Intn(3) == 0 {
			paidAt := debt.CreatedAt.Add(time.Duration(1+rand.Intn(72)) * time.Hour)
			debt.Paid = true
			debt.PaidAt = &paidAt
		}
		if err := s.db.Create(&debt).Error; err != nil {
			return created, fmt.Errorf("failed to create debt: %w", err)
		}
		created++
	}

	log.Printf("Created %d debts", created)
	return created, nil
}

// Run executes the full seed: users, friendships, debts.
func (s *Seeder) Run(opts Options) error {
	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return err
		}
	}

	users, err := s.SeedUsers(opts.NumUsers)
	if err != nil {
		return err
	}
	if _, err := s.SeedFriendships(users); err != nil {
		return err
	}
	if _, err := s.SeedDebts(3); err != nil {
		return err
	}
	return nil
}
