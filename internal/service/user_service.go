package service

import (
	"context"
	"strconv"
	"strings"

	"splitpay/internal/cache"
	"splitpay/internal/middleware"
	"splitpay/internal/models"
	"splitpay/internal/notifications"
	"splitpay/internal/observability"
	"splitpay/internal/repository"

	"github.com/redis/go-redis/v9"
)

// UserService provides user profile and account business logic, including
// the debt-guarded friend removal.
type UserService struct {
	userRepo   repository.UserRepository
	friendRepo repository.FriendRepository
	debtRepo   repository.DebtRepository
	rdb        *redis.Client
	notifier   *notifications.Notifier
}

// NewUserService returns a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	friendRepo repository.FriendRepository,
	debtRepo repository.DebtRepository,
	rdb *redis.Client,
	notifier *notifications.Notifier,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		friendRepo: friendRepo,
		debtRepo:   debtRepo,
		rdb:        rdb,
		notifier:   notifier,
	}
}

// GetUser returns the user with the given ID.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ProfileUpdate carries the mutable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Username *string
	PhotoURL *string
	PixKey   *string
}

// UpdateProfile applies a partial profile update.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if len(username) < 3 || len(username) > 30 {
			return nil, models.NewValidationError("Username must be between 3 and 30 characters")
		}
		existing, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, models.NewValidationError("Username is already taken")
		}
		user.Username = username
	}
	if update.PhotoURL != nil {
		user.PhotoURL = *update.PhotoURL
	}
	if update.PixKey != nil {
		user.PixKey = strings.TrimSpace(*update.PixKey)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SearchUsers finds users by username prefix.
func (s *UserService) SearchUsers(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.userRepo.Search(ctx, prefix, limit)
}

// RemoveFriend removes a friendship, refused while the unpaid debts between
// the two users leave a non-zero net balance. Offsetting debts cancel out and
// do not block removal. The refusal carries the outstanding totals from the
// caller's perspective so the client can render what blocks the removal.
func (s *UserService) RemoveFriend(ctx context.Context, userID, friendID uint) error {
	exists, err := s.friendRepo.EdgeExists(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !exists {
		observability.FriendOperations.WithLabelValues("remove", "refused").Inc()
		return models.NewNotFoundError("Friendship", friendID)
	}

	toReceive, err := s.debtRepo.SumUnpaid(ctx, userID, friendID)
	if err != nil {
		return err
	}
	toPay, err := s.debtRepo.SumUnpaid(ctx, friendID, userID)
	if err != nil {
		return err
	}
	if toReceive-toPay != 0 {
		observability.FriendOperations.WithLabelValues("remove", "refused").Inc()
		return models.NewPendingDebtsError(toReceive, toPay)
	}

	if err := s.friendRepo.RemoveFriendship(ctx, userID, friendID); err != nil {
		return err
	}

	s.removeFriendSet(ctx, userID, friendID)
	s.removeFriendSet(ctx, friendID, userID)

	observability.FriendOperations.WithLabelValues("remove", "ok").Inc()
	if s.notifier != nil {
		payload := map[string]uint{"user_id": userID, "friend_id": friendID}
		for _, target := range []uint{userID, friendID} {
			if err := s.notifier.PublishEvent(ctx, target, notifications.EventFriendRemoved, payload); err != nil {
				middleware.Logger.WarnContext(ctx, "friend removal publish failed", "user_id", target, "error", err)
			}
		}
	}
	return nil
}

func (s *UserService) removeFriendSet(ctx context.Context, userID, friendID uint) {
	if s.rdb == nil {
		return
	}
	member := strconv.FormatUint(uint64(friendID), 10)
	if err := s.rdb.SRem(ctx, cache.FriendSetKey(userID), member).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "friend set remove failed", "user_id", userID, "friend_id", friendID, "error", err)
	}
}
