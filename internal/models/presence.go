// Package models contains data structures for the application's domain models.
package models

// PresenceStatus is the user-visible presence state.
type PresenceStatus string

const (
	PresenceStatusOnline  PresenceStatus = "online"
	PresenceStatusOffline PresenceStatus = "offline"
	PresenceStatusAway    PresenceStatus = "away"
	PresenceStatusBusy    PresenceStatus = "busy"
)

// Valid reports whether s is one of the four known statuses.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceStatusOnline, PresenceStatusOffline, PresenceStatusAway, PresenceStatusBusy:
		return true
	}
	return false
}

// DeviceInfo is informational metadata about the client that wrote a
// presence record.
type DeviceInfo struct {
	Platform   string `json:"platform,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
}

// PresenceRecord is the per-user presence document stored in Redis and
// published to presence listeners. LastSeen is epoch milliseconds.
type PresenceRecord struct {
	UserID   uint           `json:"user_id"`
	IsOnline bool           `json:"is_online"`
	Status   PresenceStatus `json:"status"`
	LastSeen int64          `json:"last_seen"`
	Device   DeviceInfo     `json:"device,omitempty"`
}

// NewPresenceRecord builds a record enforcing the invariant that
// is_online is false whenever status is offline. The inverse is not
// enforced: away/busy users are still connected.
func NewPresenceRecord(userID uint, status PresenceStatus, lastSeenMillis int64, device DeviceInfo) PresenceRecord {
	return PresenceRecord{
		UserID:   userID,
		IsOnline: status != PresenceStatusOffline,
		Status:   status,
		LastSeen: lastSeenMillis,
		Device:   device,
	}
}

// OfflinePresence is the synthesized default observers receive for a user
// with no stored record, so absence is never a distinct observable state.
func OfflinePresence(userID uint) PresenceRecord {
	return PresenceRecord{
		UserID:   userID,
		IsOnline: false,
		Status:   PresenceStatusOffline,
	}
}
