// Package notifications provides real-time event delivery over Redis
// pub/sub and the WebSocket hub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Event types published to user channels.
const (
	EventFriendRequest  = "friend:request"
	EventFriendAccepted = "friend:accepted"
	EventFriendRemoved  = "friend:removed"
	EventDebtCreated    = "debt:created"
	EventDebtPaid       = "debt:paid"
)

// Event is the envelope delivered to clients over the user channel.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Notifier provides helpers to publish notifications into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishEvent marshals an Event envelope and sends it to a user's channel.
func (n *Notifier) PublishEvent(ctx context.Context, userID uint, eventType string, data any) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.PublishUser(ctx, userID, string(payload))
}

// PublishBroadcast sends a payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, "notifications:broadcast", payload).Err()
}

// StartPatternSubscriber subscribes to `notifications:user:*` and the
// broadcast channel, calling onMessage for each incoming message.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*", "notifications:broadcast")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel returns the Redis channel name for a user's notifications.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// UserIDFromChannel extracts the user ID from a user notification channel
// name, returning 0 when the channel is not a user channel.
func UserIDFromChannel(channel string) uint {
	raw, ok := strings.CutPrefix(channel, "notifications:user:")
	if !ok {
		return 0
	}
	id64, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id64)
}
