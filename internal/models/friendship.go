// Package models contains data structures for the application's domain models.
package models

import "time"

// FriendRequestStatus represents the status of a friend request.
type FriendRequestStatus string

const (
	// FriendRequestStatusPending indicates a request awaiting a decision.
	FriendRequestStatusPending FriendRequestStatus = "pending"
	// FriendRequestStatusAccepted is a transient state: accepted requests
	// are deleted in the same transaction that creates the edges.
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
)

// FriendRequest represents a pending proposal from one user to another.
// Rejection deletes the row outright; no "rejected" status is ever stored,
// so the same pair can re-request later without collision.
type FriendRequest struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	FromUserID   uint                `gorm:"not null;uniqueIndex:idx_friend_requests_pair" json:"from_user_id"`
	ToUserID     uint                `gorm:"not null;uniqueIndex:idx_friend_requests_pair" json:"to_user_id"`
	FromUsername string              `gorm:"not null" json:"from_username"`
	ToUsername   string              `gorm:"not null" json:"to_username"`
	FromPhotoURL string              `json:"from_photo_url,omitempty"`
	Status       FriendRequestStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`

	// Relationships
	FromUser User `gorm:"foreignKey:FromUserID" json:"from_user,omitempty"`
	ToUser   User `gorm:"foreignKey:ToUserID" json:"to_user,omitempty"`
}

// TableName specifies the table name for GORM
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// FriendshipEdge is one directed record of an accepted friendship.
// Two mirrored rows exist per friendship; both are written in a single
// transaction, so an asymmetric edge is not a reachable steady state.
type FriendshipEdge struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_friendship_edges_pair" json:"user_id"`
	FriendID       uint      `gorm:"not null;uniqueIndex:idx_friendship_edges_pair" json:"friend_id"`
	Username       string    `gorm:"not null" json:"username"`
	FriendUsername string    `gorm:"not null" json:"friend_username"`
	CreatedAt      time.Time `json:"created_at"`

	// Relationships
	User   User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Friend User `gorm:"foreignKey:FriendID" json:"friend,omitempty"`
}

// TableName specifies the table name for GORM
func (FriendshipEdge) TableName() string {
	return "friendship_edges"
}

// FriendshipStatusNone and friends are the values reported by the
// friendship-status endpoint.
const (
	FriendshipStatusNone            = "none"
	FriendshipStatusFriends         = "friends"
	FriendshipStatusPendingSent     = "pending_sent"
	FriendshipStatusPendingReceived = "pending_received"
)
