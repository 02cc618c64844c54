// Package presence tracks per-user online state in Redis and fans presence
// updates out to subscribers over pub/sub.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"splitpay/internal/middleware"
	"splitpay/internal/models"
	"splitpay/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	// OnlineSetKey holds the IDs of users believed online.
	OnlineSetKey = "presence:online"

	recordKeyPrefix = "presence:user:"

	defaultHeartbeatInterval = 30 * time.Second
	defaultTTL               = 90 * time.Second
	defaultReadyTimeout      = 5 * time.Second

	readyPollInterval = 200 * time.Millisecond
)

// RecordKey is both the Redis key of a user's presence record and the
// pub/sub channel its updates are published on.
func RecordKey(userID uint) string {
	return recordKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Options configures a Tracker. Zero values fall back to defaults.
type Options struct {
	HeartbeatInterval time.Duration
	TTL               time.Duration
	ReadyTimeout      time.Duration
}

// ListenFunc receives presence records for a watched user.
type ListenFunc func(models.PresenceRecord)

type subscription struct {
	userID uint
	pubsub *redis.PubSub
	once   sync.Once
}

// Tracker maintains one user's own presence lifecycle (Start, heartbeat,
// SetStatus, Stop) and any number of subscriptions to other users' records.
// The Redis client is injected; the caller owns the Tracker's lifetime.
type Tracker struct {
	rdb  *redis.Client
	opts Options

	mu       sync.Mutex
	started  bool
	userID   uint
	device   models.DeviceInfo
	status   models.PresenceStatus
	hbCancel context.CancelFunc
	subs     map[uint]map[*subscription]struct{}
}

// New creates a Tracker around the given Redis client.
func New(rdb *redis.Client, opts Options) *Tracker {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	return &Tracker{
		rdb:  rdb,
		opts: opts,
		subs: make(map[uint]map[*subscription]struct{}),
	}
}

// Start marks userID online and begins heartbeating. It waits up to
// ReadyTimeout for Redis to answer a ping; if the store never becomes
// ready the start is a logged no-op so an early call during session
// setup cannot wedge the caller. Calling Start on an already-started
// tracker is a no-op.
func (t *Tracker) Start(ctx context.Context, userID uint, device models.DeviceInfo) error {
	if t.rdb == nil {
		middleware.Logger.WarnContext(ctx, "presence start skipped: no redis client", "user_id", userID)
		return nil
	}
	if !t.waitReady(ctx) {
		middleware.Logger.WarnContext(ctx, "presence start skipped: redis not ready", "user_id", userID)
		return nil
	}

	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.userID = userID
	t.device = device
	t.status = models.PresenceStatusOnline

	hbCtx, cancel := context.WithCancel(context.Background())
	t.hbCancel = cancel
	t.mu.Unlock()

	rec := models.NewPresenceRecord(userID, models.PresenceStatusOnline, time.Now().UnixMilli(), device)
	if err := t.writeRecord(ctx, rec); err != nil {
		return err
	}
	if err := t.rdb.SAdd(ctx, OnlineSetKey, strconv.FormatUint(uint64(userID), 10)).Err(); err != nil {
		middleware.Logger.ErrorContext(ctx, "presence online set add failed", "user_id", userID, "error", err)
	}
	observability.PresenceTransitions.WithLabelValues(string(models.PresenceStatusOnline)).Inc()

	go t.heartbeatLoop(hbCtx)
	return nil
}

// SetStatus rewrites the tracked user's record with the given status and
// publishes it. Setting offline drops the user from the online set and
// pauses heartbeat refreshes so the offline record can expire; the loop
// itself keeps running until Stop, and resumes refreshing if the status
// goes back to a live one.
func (t *Tracker) SetStatus(ctx context.Context, status models.PresenceStatus) error {
	if !status.Valid() {
		return models.NewValidationError(fmt.Sprintf("invalid presence status %q", status))
	}

	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return models.NewValidationError("presence tracking not started")
	}
	t.status = status
	userID := t.userID
	device := t.device
	t.mu.Unlock()

	rec := models.NewPresenceRecord(userID, status, time.Now().UnixMilli(), device)
	if err := t.writeRecord(ctx, rec); err != nil {
		return err
	}

	member := strconv.FormatUint(uint64(userID), 10)
	if status == models.PresenceStatusOffline {
		t.rdb.SRem(ctx, OnlineSetKey, member)
	} else {
		t.rdb.SAdd(ctx, OnlineSetKey, member)
	}
	observability.PresenceTransitions.WithLabelValues(string(status)).Inc()
	return nil
}

// Get returns the stored record for userID, or a synthesized offline
// record when none exists.
func (t *Tracker) Get(ctx context.Context, userID uint) (models.PresenceRecord, error) {
	raw, err := t.rdb.Get(ctx, RecordKey(userID)).Result()
	if err == redis.Nil {
		return models.OfflinePresence(userID), nil
	}
	if err != nil {
		return models.PresenceRecord{}, models.NewInternalError(err)
	}
	var rec models.PresenceRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return models.PresenceRecord{}, models.NewInternalError(err)
	}
	return rec, nil
}

// Listen invokes fn with userID's current record immediately, then with
// every published update until the returned unsubscribe func is called
// or the tracker stops. Multiple listens on the same user are
// independent: cancelling one leaves the others attached.
func (t *Tracker) Listen(ctx context.Context, userID uint, fn ListenFunc) (func(), error) {
	current, err := t.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	fn(current)

	pubsub := t.rdb.Subscribe(ctx, RecordKey(userID))
	sub := &subscription{userID: userID, pubsub: pubsub}

	t.mu.Lock()
	if t.subs[userID] == nil {
		t.subs[userID] = make(map[*subscription]struct{})
	}
	t.subs[userID][sub] = struct{}{}
	t.mu.Unlock()

	go func() {
		for msg := range pubsub.Channel() {
			var rec models.PresenceRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				middleware.Logger.Warn("presence listener dropped malformed payload", "user_id", userID, "error", err)
				continue
			}
			fn(rec)
		}
	}()

	return func() { t.unsubscribe(sub) }, nil
}

// Stop writes the offline record, publishes it, stops the heartbeat and
// cancels every live subscription. The tracker can be started again.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	userID := t.userID
	device := t.device
	if t.hbCancel != nil {
		t.hbCancel()
		t.hbCancel = nil
	}
	subs := t.drainSubsLocked()
	t.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	rec := models.NewPresenceRecord(userID, models.PresenceStatusOffline, time.Now().UnixMilli(), device)
	if err := t.writeRecord(ctx, rec); err != nil {
		return err
	}
	t.rdb.SRem(ctx, OnlineSetKey, strconv.FormatUint(uint64(userID), 10))
	observability.PresenceTransitions.WithLabelValues(string(models.PresenceStatusOffline)).Inc()
	return nil
}

// ReapStale performs one sweep: any online-set member whose record key
// has expired is written back as offline and published, so observers
// converge even when the client died without saying goodbye.
func (t *Tracker) ReapStale(ctx context.Context) error {
	members, err := t.rdb.SMembers(ctx, OnlineSetKey).Result()
	if err != nil {
		return models.NewInternalError(err)
	}
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			t.rdb.SRem(ctx, OnlineSetKey, raw)
			continue
		}
		userID := uint(id64)
		exists, existsErr := t.rdb.Exists(ctx, RecordKey(userID)).Result()
		if existsErr != nil || exists > 0 {
			continue
		}
		rec := models.OfflinePresence(userID)
		rec.LastSeen = time.Now().UnixMilli()
		if err := t.writeRecord(ctx, rec); err != nil {
			middleware.Logger.ErrorContext(ctx, "presence reap write failed", "user_id", userID, "error", err)
			continue
		}
		t.rdb.SRem(ctx, OnlineSetKey, raw)
		observability.PresenceReaped.Inc()
		observability.PresenceTransitions.WithLabelValues(string(models.PresenceStatusOffline)).Inc()
	}
	return nil
}

// StartReaper runs ReapStale every interval until ctx is cancelled.
func (t *Tracker) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.ReapStale(ctx); err != nil {
					middleware.Logger.ErrorContext(ctx, "presence reaper sweep failed", "error", err)
				}
			}
		}
	}()
}

func (t *Tracker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(t.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			if !t.started {
				t.mu.Unlock()
				return
			}
			userID := t.userID
			status := t.status
			device := t.device
			t.mu.Unlock()

			if status == models.PresenceStatusOffline {
				// An offline record must be allowed to expire, not be
				// re-asserted with a fresh TTL.
				continue
			}

			// Re-assertion, not a transition: the status is kept and
			// last_seen advances.
			rec := models.NewPresenceRecord(userID, status, time.Now().UnixMilli(), device)
			if err := t.writeRecord(ctx, rec); err != nil {
				middleware.Logger.Warn("presence heartbeat write failed", "user_id", userID, "error", err)
				continue
			}
			observability.PresenceHeartbeats.Inc()
		}
	}
}

// writeRecord stores the record with the configured TTL and publishes it
// on the user's channel.
func (t *Tracker) writeRecord(ctx context.Context, rec models.PresenceRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return models.NewInternalError(err)
	}
	key := RecordKey(rec.UserID)
	if err := t.rdb.Set(ctx, key, payload, t.opts.TTL).Err(); err != nil {
		return models.NewInternalError(err)
	}
	if err := t.rdb.Publish(ctx, key, payload).Err(); err != nil {
		middleware.Logger.Warn("presence publish failed", "user_id", rec.UserID, "error", err)
	}
	return nil
}

func (t *Tracker) waitReady(ctx context.Context) bool {
	deadline := time.Now().Add(t.opts.ReadyTimeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, readyPollInterval)
		err := t.rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(readyPollInterval)
	}
}

func (t *Tracker) unsubscribe(sub *subscription) {
	t.mu.Lock()
	if set, ok := t.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(t.subs, sub.userID)
		}
	}
	t.mu.Unlock()
	sub.close()
}

func (t *Tracker) drainSubsLocked() []*subscription {
	var all []*subscription
	for _, set := range t.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	t.subs = make(map[uint]map[*subscription]struct{})
	return all
}

func (s *subscription) close() {
	s.once.Do(func() {
		_ = s.pubsub.Close()
	})
}
