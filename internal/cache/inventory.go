package cache

import (
	"fmt"
	"time"
)

// Key namespaces. Presence keys live in package presence; everything else
// that touches Redis derives its keys here so the namespace stays surveyable.
const (
	FriendSetKeyPrefix = "friends:%d"
	WSTicketKeyPrefix  = "ws_ticket:%s"
	BlacklistKeyPrefix = "blacklist:%s"
)

const (
	// WSTicketTTL bounds how long an issued websocket ticket stays redeemable.
	WSTicketTTL = 30 * time.Second
)

// FriendSetKey is the denormalized friend-ID set for a user, maintained
// with SADD/SREM and rebuilt from the edge table on miss.
func FriendSetKey(userID uint) string {
	return fmt.Sprintf(FriendSetKeyPrefix, userID)
}

// WSTicketKey stores a single-use websocket auth ticket.
func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

// BlacklistKey marks a revoked JWT ID.
func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}
