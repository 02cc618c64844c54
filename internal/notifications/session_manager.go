package notifications

import (
	"context"
	"sync"
	"time"

	"splitpay/internal/models"
	"splitpay/internal/presence"

	"github.com/redis/go-redis/v9"
)

const defaultOfflineGrace = 5 * time.Second

// SessionManagerConfig controls presence lifecycle behavior.
type SessionManagerConfig struct {
	OfflineGracePeriod time.Duration
	TrackerOptions     presence.Options
}

// SessionManager counts a user's live websocket connections and drives
// their presence tracker: Start on the first connection, Stop after the
// last one closes and an offline grace window passes without a
// reconnect. The grace window suppresses offline flaps on rapid
// reconnects; the tracker's record TTL and reaper cover the case where
// this process dies before Stop runs.
type SessionManager struct {
	rdb  *redis.Client
	opts presence.Options

	mu            sync.RWMutex
	connCounts    map[uint]int
	trackers      map[uint]*presence.Tracker
	offlineTimers map[uint]*time.Timer
	grace         time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSessionManager creates a manager around the given Redis client.
func NewSessionManager(rdb *redis.Client, cfg SessionManagerConfig) *SessionManager {
	grace := cfg.OfflineGracePeriod
	if grace <= 0 {
		grace = defaultOfflineGrace
	}
	return &SessionManager{
		rdb:           rdb,
		opts:          cfg.TrackerOptions,
		connCounts:    make(map[uint]int),
		trackers:      make(map[uint]*presence.Tracker),
		offlineTimers: make(map[uint]*time.Timer),
		grace:         grace,
		stopCh:        make(chan struct{}),
	}
}

// SetOfflineGracePeriod adjusts the reconnect window.
func (m *SessionManager) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.grace = d
	m.mu.Unlock()
}

// Register records a new connection for userID and starts presence
// tracking on the first one.
func (m *SessionManager) Register(ctx context.Context, userID uint, device models.DeviceInfo) {
	m.mu.Lock()
	if t, ok := m.offlineTimers[userID]; ok {
		t.Stop()
		delete(m.offlineTimers, userID)
	}
	m.connCounts[userID]++
	tracker, ok := m.trackers[userID]
	if !ok {
		tracker = presence.New(m.rdb, m.opts)
		m.trackers[userID] = tracker
	}
	m.mu.Unlock()

	if m.rdb != nil {
		_ = tracker.Start(ctx, userID, device)
	}
}

// Unregister records a dropped connection; the last one arms the
// offline grace timer.
func (m *SessionManager) Unregister(ctx context.Context, userID uint) {
	m.mu.Lock()
	if n, ok := m.connCounts[userID]; ok {
		n--
		if n > 0 {
			m.connCounts[userID] = n
			m.mu.Unlock()
			return
		}
		delete(m.connCounts, userID)
	}

	if t, ok := m.offlineTimers[userID]; ok {
		t.Stop()
	}
	m.offlineTimers[userID] = time.AfterFunc(m.grace, func() {
		m.finalizeOffline(context.Background(), userID)
	})
	m.mu.Unlock()
}

// SetStatus forwards a manual status change (away, busy, back online)
// to the user's live presence session.
func (m *SessionManager) SetStatus(ctx context.Context, userID uint, status models.PresenceStatus) error {
	m.mu.RLock()
	tracker := m.trackers[userID]
	m.mu.RUnlock()

	if tracker == nil {
		return models.NewValidationError("No active presence session")
	}
	return tracker.SetStatus(ctx, status)
}

// IsOnline reports whether userID has a live local connection or an
// unexpired presence record.
func (m *SessionManager) IsOnline(ctx context.Context, userID uint) bool {
	m.mu.RLock()
	if m.connCounts[userID] > 0 {
		m.mu.RUnlock()
		return true
	}
	tracker := m.trackers[userID]
	m.mu.RUnlock()

	if m.rdb == nil {
		return false
	}
	if tracker == nil {
		tracker = presence.New(m.rdb, m.opts)
	}
	rec, err := tracker.Get(ctx, userID)
	if err != nil {
		return false
	}
	return rec.IsOnline
}

// Stop halts every timer and stops every tracked presence session.
func (m *SessionManager) Stop(ctx context.Context) {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.mu.Lock()
		for userID, timer := range m.offlineTimers {
			if timer != nil {
				timer.Stop()
			}
			delete(m.offlineTimers, userID)
		}
		trackers := make([]*presence.Tracker, 0, len(m.trackers))
		for userID, tracker := range m.trackers {
			trackers = append(trackers, tracker)
			delete(m.trackers, userID)
		}
		m.mu.Unlock()

		for _, tracker := range trackers {
			_ = tracker.Stop(ctx)
		}
	})
}

func (m *SessionManager) finalizeOffline(ctx context.Context, userID uint) {
	select {
	case <-m.stopCh:
		// Stop already tore everything down; a grace timer may still fire
		// once between close(stopCh) and timer.Stop.
		return
	default:
	}

	m.mu.Lock()
	if m.connCounts[userID] > 0 {
		// Reconnected during the grace window.
		delete(m.offlineTimers, userID)
		m.mu.Unlock()
		return
	}
	delete(m.offlineTimers, userID)
	tracker := m.trackers[userID]
	delete(m.trackers, userID)
	m.mu.Unlock()

	if tracker != nil {
		_ = tracker.Stop(ctx)
	}
}

// hasPendingOffline reports whether a grace timer is armed for userID.
// Test hook.
func (m *SessionManager) hasPendingOffline(userID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.offlineTimers[userID]
	return ok
}

// tracks reports whether a presence tracker exists for userID. Test hook.
func (m *SessionManager) tracks(userID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.trackers[userID]
	return ok
}
