// Package service contains the business logic layer.
package service

import (
	"context"
	"strconv"

	"splitpay/internal/cache"
	"splitpay/internal/middleware"
	"splitpay/internal/models"
	"splitpay/internal/notifications"
	"splitpay/internal/observability"
	"splitpay/internal/repository"

	"github.com/redis/go-redis/v9"
)

// FriendService coordinates friend requests, friendship edges and the
// denormalized friend-ID sets in Redis.
type FriendService struct {
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	rdb        *redis.Client
	notifier   *notifications.Notifier
}

// NewFriendService returns a new FriendService.
func NewFriendService(
	friendRepo repository.FriendRepository,
	userRepo repository.UserRepository,
	rdb *redis.Client,
	notifier *notifications.Notifier,
) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		rdb:        rdb,
		notifier:   notifier,
	}
}

// SendFriendRequest sends a friend request to the target user. A pending
// request in either direction or an existing friendship refuses the send;
// the unique index on the pair backstops concurrent duplicates.
func (s *FriendService) SendFriendRequest(ctx context.Context, userID, targetUserID uint) (*models.FriendRequest, error) {
	if userID == targetUserID {
		observability.FriendOperations.WithLabelValues("send", "refused").Inc()
		return nil, models.NewValidationError("Cannot send friend request to yourself")
	}

	from, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, targetUserID)
	if err != nil {
		observability.FriendOperations.WithLabelValues("send", "refused").Inc()
		return nil, err
	}

	existing, err := s.friendRepo.GetRequestBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		observability.FriendOperations.WithLabelValues("send", "refused").Inc()
		return nil, models.NewDuplicateRequestError()
	}

	friends, err := s.friendRepo.EdgeExists(ctx, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	if friends {
		observability.FriendOperations.WithLabelValues("send", "refused").Inc()
		return nil, models.NewAlreadyFriendsError()
	}

	req := &models.FriendRequest{
		FromUserID:   userID,
		ToUserID:     targetUserID,
		FromUsername: from.Username,
		ToUsername:   target.Username,
		FromPhotoURL: from.PhotoURL,
		Status:       models.FriendRequestStatusPending,
	}
	if err := s.friendRepo.CreateRequest(ctx, req); err != nil {
		observability.FriendOperations.WithLabelValues("send", "refused").Inc()
		return nil, err
	}

	observability.FriendOperations.WithLabelValues("send", "ok").Inc()
	s.publish(ctx, targetUserID, notifications.EventFriendRequest, req)
	return req, nil
}

// AcceptFriendRequest accepts a pending request addressed to the caller.
// The request row and both mirrored edges move in one transaction; the
// Redis friend sets and notifications follow after commit. A replayed
// accept finds no request row and reports NOT_FOUND.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, userID, requestID uint) (*models.FriendRequest, error) {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		observability.FriendOperations.WithLabelValues("accept", "refused").Inc()
		return nil, err
	}
	if req.ToUserID != userID {
		observability.FriendOperations.WithLabelValues("accept", "refused").Inc()
		return nil, models.NewUnauthorizedError("You can only accept friend requests sent to you")
	}
	if req.Status != models.FriendRequestStatusPending {
		observability.FriendOperations.WithLabelValues("accept", "refused").Inc()
		return nil, models.NewValidationError("Friend request is not pending")
	}

	if err := s.friendRepo.AcceptRequest(ctx, req); err != nil {
		observability.FriendOperations.WithLabelValues("accept", "refused").Inc()
		return nil, err
	}

	s.addFriendSet(ctx, req.FromUserID, req.ToUserID)
	s.addFriendSet(ctx, req.ToUserID, req.FromUserID)

	observability.FriendOperations.WithLabelValues("accept", "ok").Inc()
	req.Status = models.FriendRequestStatusAccepted
	s.publish(ctx, req.FromUserID, notifications.EventFriendAccepted, req)
	s.publish(ctx, req.ToUserID, notifications.EventFriendAccepted, req)
	return req, nil
}

// RejectFriendRequest deletes a pending request. The addressee rejects,
// the requester cancels; either way no tombstone remains and the pair
// can re-request later.
func (s *FriendService) RejectFriendRequest(ctx context.Context, userID, requestID uint) (*models.FriendRequest, error) {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		observability.FriendOperations.WithLabelValues("reject", "refused").Inc()
		return nil, err
	}
	if req.ToUserID != userID && req.FromUserID != userID {
		observability.FriendOperations.WithLabelValues("reject", "refused").Inc()
		return nil, models.NewUnauthorizedError("You can only reject or cancel your own pending requests")
	}
	if req.Status != models.FriendRequestStatusPending {
		observability.FriendOperations.WithLabelValues("reject", "refused").Inc()
		return nil, models.NewValidationError("Friend request is not pending")
	}

	if err := s.friendRepo.DeleteRequest(ctx, req.ID); err != nil {
		return nil, err
	}
	observability.FriendOperations.WithLabelValues("reject", "ok").Inc()
	return req, nil
}

// AreFriends reports whether a directed edge a→b exists. The
// transactional edge writes make asymmetry unreachable, so checking one
// direction suffices.
func (s *FriendService) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	return s.friendRepo.EdgeExists(ctx, a, b)
}

// GetFriends returns the user's friendship edges, including the
// denormalized friend usernames.
func (s *FriendService) GetFriends(ctx context.Context, userID uint) ([]models.FriendshipEdge, error) {
	return s.friendRepo.GetEdges(ctx, userID)
}

// GetFriendIDs returns the user's friend IDs from the Redis set,
// rebuilding the set from the edge table on a miss.
func (s *FriendService) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	if s.rdb != nil {
		members, err := s.rdb.SMembers(ctx, cache.FriendSetKey(userID)).Result()
		if err == nil && len(members) > 0 {
			ids := make([]uint, 0, len(members))
			for _, raw := range members {
				id64, parseErr := strconv.ParseUint(raw, 10, 32)
				if parseErr != nil {
					continue
				}
				ids = append(ids, uint(id64))
			}
			return ids, nil
		}
		if err != nil {
			middleware.Logger.WarnContext(ctx, "friend set read failed", "user_id", userID, "error", err)
		}
	}

	edges, err := s.friendRepo.GetEdges(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.FriendID)
		s.addFriendSet(ctx, userID, edge.FriendID)
	}
	return ids, nil
}

// GetPendingRequests returns pending friend requests addressed to the user.
func (s *FriendService) GetPendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friendRepo.GetPendingRequests(ctx, userID)
}

// GetSentRequests returns pending friend requests sent by the user.
func (s *FriendService) GetSentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friendRepo.GetSentRequests(ctx, userID)
}

// GetFriendshipStatus reports the relationship between two users as one
// of none, friends, pending_sent or pending_received, plus the request ID
// when one is pending.
func (s *FriendService) GetFriendshipStatus(ctx context.Context, userID, targetUserID uint) (string, uint, error) {
	friends, err := s.friendRepo.EdgeExists(ctx, userID, targetUserID)
	if err != nil {
		return "", 0, err
	}
	if friends {
		return models.FriendshipStatusFriends, 0, nil
	}

	req, err := s.friendRepo.GetRequestBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return "", 0, err
	}
	if req == nil {
		return models.FriendshipStatusNone, 0, nil
	}
	if req.FromUserID == userID {
		return models.FriendshipStatusPendingSent, req.ID, nil
	}
	return models.FriendshipStatusPendingReceived, req.ID, nil
}

func (s *FriendService) addFriendSet(ctx context.Context, userID, friendID uint) {
	if s.rdb == nil {
		return
	}
	member := strconv.FormatUint(uint64(friendID), 10)
	if err := s.rdb.SAdd(ctx, cache.FriendSetKey(userID), member).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "friend set add failed", "user_id", userID, "friend_id", friendID, "error", err)
	}
}

func (s *FriendService) publish(ctx context.Context, userID uint, eventType string, data any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishEvent(ctx, userID, eventType, data); err != nil {
		middleware.Logger.WarnContext(ctx, "friend event publish failed", "user_id", userID, "event", eventType, "error", err)
	}
}
