package repository

import (
	"context"
	"errors"

	"splitpay/internal/models"

	"gorm.io/gorm"
)

// FriendRepository defines persistence operations for friend requests and
// friendship edges. Accept and RemoveFriendship are transactional: the
// request row and both mirrored edges move together or not at all.
type FriendRepository interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetRequestBetweenUsers(ctx context.Context, userA, userB uint) (*models.FriendRequest, error)
	GetPendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	GetSentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	DeleteRequest(ctx context.Context, id uint) error
	AcceptRequest(ctx context.Context, req *models.FriendRequest) error
	EdgeExists(ctx context.Context, userID, friendID uint) (bool, error)
	GetEdges(ctx context.Context, userID uint) ([]models.FriendshipEdge, error)
	RemoveFriendship(ctx context.Context, userID, friendID uint) error
}

type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository returns a new FriendRepository implementation.
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewDuplicateRequestError()
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Friend request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

// GetRequestBetweenUsers finds a request in either direction between two
// users. Returns nil, nil when none exists.
func (r *friendRepository) GetRequestBetweenUsers(ctx context.Context, userA, userB uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
			userA, userB, userB, userA).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *friendRepository) GetPendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", userID, models.FriendRequestStatusPending).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *friendRepository) GetSentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND status = ?", userID, models.FriendRequestStatusPending).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *friendRepository) DeleteRequest(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.FriendRequest{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// AcceptRequest marks the request accepted, inserts both mirrored edges and
// removes the request row in a single transaction.
func (r *friendRepository) AcceptRequest(ctx context.Context, req *models.FriendRequest) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FriendRequest{}).
			Where("id = ? AND status = ?", req.ID, models.FriendRequestStatusPending).
			Update("status", models.FriendRequestStatusAccepted).Error; err != nil {
			return err
		}
		edges := []models.FriendshipEdge{
			{
				UserID:         req.ToUserID,
				FriendID:       req.FromUserID,
				Username:       req.ToUsername,
				FriendUsername: req.FromUsername,
			},
			{
				UserID:         req.FromUserID,
				FriendID:       req.ToUserID,
				Username:       req.FromUsername,
				FriendUsername: req.ToUsername,
			},
		}
		if err := tx.Create(&edges).Error; err != nil {
			return err
		}
		return tx.Delete(&models.FriendRequest{}, req.ID).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewAlreadyFriendsError()
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) EdgeExists(ctx context.Context, userID, friendID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FriendshipEdge{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *friendRepository) GetEdges(ctx context.Context, userID uint) ([]models.FriendshipEdge, error) {
	var edges []models.FriendshipEdge
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("friend_username").
		Find(&edges).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return edges, nil
}

// RemoveFriendship deletes both mirrored edges in a single transaction.
func (r *friendRepository) RemoveFriendship(ctx context.Context, userID, friendID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND friend_id = ?", userID, friendID).
			Delete(&models.FriendshipEdge{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("user_id = ? AND friend_id = ?", friendID, userID).
			Delete(&models.FriendshipEdge{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Friendship", friendID)
		}
		return models.NewInternalError(err)
	}
	return nil
}
