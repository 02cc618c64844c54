package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"splitpay/internal/cache"
	"splitpay/internal/models"
	"splitpay/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set an
// Authorization header on a websocket dial, so the client trades its JWT
// for a short-lived single-use ticket and passes that as a query param.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Realtime service unavailable"})
	}

	ticket := uuid.New().String()
	userID := currentUserID(c)
	if err := s.redis.Set(c.Context(), cache.WSTicketKey(ticket), userID, cache.WSTicketTTL).Err(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue ticket"})
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}

// WebsocketHandler upgrades authenticated connections and serves the
// realtime channel: pushed notification events plus presence
// subscriptions driven by subscribe/unsubscribe frames.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		device := models.DeviceInfo{
			Platform:   conn.Query("platform"),
			AppVersion: conn.Query("app_version"),
		}

		client, err := s.hub.Register(userID, conn, device)
		if err != nil {
			log.Printf("WebSocket: failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		// Presence subscriptions held by this connection. Guarded because
		// the pubsub delivery goroutines invoke TrySend concurrently with
		// the read pump mutating the map.
		var subMu sync.Mutex
		subs := make(map[uint]func())

		client.IncomingHandler = func(cl *notifications.Client, message []byte) {
			var frame struct {
				Type   string `json:"type"`
				UserID uint   `json:"user_id"`
			}
			if err := json.Unmarshal(message, &frame); err != nil {
				log.Printf("WebSocket: invalid frame from user %d", userID)
				return
			}

			switch frame.Type {
			case "subscribe":
				if frame.UserID == 0 {
					return
				}
				subMu.Lock()
				_, already := subs[frame.UserID]
				subMu.Unlock()
				if already {
					return
				}

				unsub, err := s.tracker.Listen(context.Background(), frame.UserID, func(rec models.PresenceRecord) {
					payload, merr := json.Marshal(fiber.Map{"type": "presence", "data": rec})
					if merr != nil {
						return
					}
					cl.TrySend(payload)
				})
				if err != nil {
					log.Printf("WebSocket: presence subscribe for user %d failed: %v", frame.UserID, err)
					return
				}
				subMu.Lock()
				subs[frame.UserID] = unsub
				subMu.Unlock()

			case "unsubscribe":
				subMu.Lock()
				if unsub, ok := subs[frame.UserID]; ok {
					unsub()
					delete(subs, frame.UserID)
				}
				subMu.Unlock()

			case "ping":
				cl.TrySend([]byte(`{"type":"pong"}`))
			}
		}

		client.OnClose = func(*notifications.Client) {
			subMu.Lock()
			for id, unsub := range subs {
				unsub()
				delete(subs, id)
			}
			subMu.Unlock()
		}

		if welcome, err := json.Marshal(fiber.Map{
			"type": "connected",
			"data": fiber.Map{"user_id": userID},
		}); err == nil {
			client.TrySend(welcome)
		}

		go client.WritePump()
		client.ReadPump()
	})
}
