package presence

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"splitpay/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestTracker(t *testing.T, opts Options) (*Tracker, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, opts), mr, rdb
}

func readRecord(t *testing.T, rdb *redis.Client, userID uint) models.PresenceRecord {
	t.Helper()
	raw, err := rdb.Get(context.Background(), RecordKey(userID)).Result()
	require.NoError(t, err)
	var rec models.PresenceRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec
}

func TestTracker_StartWritesOnlineRecord(t *testing.T) {
	tracker, mr, rdb := newTestTracker(t, Options{TTL: 90 * time.Second})
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, 7, models.DeviceInfo{Platform: "android"}))
	defer tracker.Stop(ctx)

	rec := readRecord(t, rdb, 7)
	assert.True(t, rec.IsOnline)
	assert.Equal(t, models.PresenceStatusOnline, rec.Status)
	assert.NotZero(t, rec.LastSeen)
	assert.Equal(t, "android", rec.Device.Platform)

	assert.True(t, mr.Exists(RecordKey(7)))
	assert.InDelta(t, 90*time.Second, mr.TTL(RecordKey(7)), float64(time.Second))

	members, err := rdb.SMembers(ctx, OnlineSetKey).Result()
	require.NoError(t, err)
	assert.Contains(t, members, "7")
}

func TestTracker_StartIsIdempotent(t *testing.T) {
	tracker, _, rdb := newTestTracker(t, Options{})
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, 7, models.DeviceInfo{}))
	defer tracker.Stop(ctx)
	first := readRecord(t, rdb, 7)

	require.NoError(t, tracker.Start(ctx, 7, models.DeviceInfo{}))
	assert.Equal(t, first.LastSeen, readRecord(t, rdb, 7).LastSeen)
}

func TestTracker_StartUnreadyStoreIsNoOp(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	tracker := New(rdb, Options{ReadyTimeout: 50 * time.Millisecond})
	assert.NoError(t, tracker.Start(context.Background(), 7, models.DeviceInfo{}))

	// The skipped start left the tracker unstarted.
	assert.Error(t, tracker.SetStatus(context.Background(), models.PresenceStatusAway))
}

func TestTracker_HeartbeatAdvancesLastSeen(t *testing.T) {
	tracker, _, rdb := newTestTracker(t, Options{HeartbeatInterval: 20 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, 9, models.DeviceInfo{}))
	defer tracker.Stop(ctx)

	require.NoError(t, tracker.SetStatus(ctx, models.PresenceStatusAway))
	initial := readRecord(t, rdb, 9).LastSeen

	assert.Eventually(t, func() bool {
		return readRecord(t, rdb, 9).LastSeen > initial
	}, testEventuallyTimeout, testPollInterval)

	// The heartbeat re-asserts, it does not transition.
	rec := readRecord(t, rdb, 9)
	assert.Equal(t, models.PresenceStatusAway, rec.Status)
	assert.True(t, rec.IsOnline)
}

func TestTracker_SetStatusOfflineClearsOnlineFlag(t *testing.T) {
	tracker, _, rdb := newTestTracker(t, Options{})
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, 4, models.DeviceInfo{}))
	defer tracker.Stop(ctx)

	require.NoError(t, tracker.SetStatus(ctx, models.PresenceStatusOffline))

	rec := readRecord(t, rdb, 4)
	assert.False(t, rec.IsOnline)
	assert.Equal(t, models.PresenceStatusOffline, rec.Status)

	members, err := rdb.SMembers(ctx, OnlineSetKey).Result()
	require.NoError(t, err)
	assert.NotContains(t, members, "4")
}

func TestTracker_HeartbeatPausesWhileOffline(t *testing.T) {
	tracker, _, rdb := newTestTracker(t, Options{HeartbeatInterval: 20 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, 6, models.DeviceInfo{}))
	defer tracker.Stop(ctx)

	require.NoError(t, tracker.SetStatus(ctx, models.PresenceStatusOffline))
	offlineAt := readRecord(t, rdb, 6).LastSeen

	// The offline record must be left to expire, not re-asserted each tick.
	assert.Never(t, func() bool {
		return readRecord(t, rdb, 6).LastSeen > offlineAt
	}, 5*testPollInterval, testPollInterval)

	// Going back to a live status resumes the refreshes.
	require.NoError(t, tracker.SetStatus(ctx, models.PresenceStatusBusy))
	resumed := readRecord(t, rdb, 6).LastSeen
	assert.Eventually(t, func() bool {
		return readRecord(t, rdb, 6).LastSeen > resumed
	}, testEventuallyTimeout, testPollInterval)
}

func TestTracker_SetStatusRejectsUnknownStatus(t *testing.T) {
	tracker, _, _ := newTestTracker(t, Options{})
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, 4, models.DeviceInfo{}))
	defer tracker.Stop(ctx)

	assert.Error(t, tracker.SetStatus(ctx, models.PresenceStatus("invisible")))
}

func TestTracker_ListenSynthesizesOfflineDefault(t *testing.T) {
	tracker, _, _ := newTestTracker(t, Options{})
	ctx := context.Background()

	var got models.PresenceRecord
	unsub, err := tracker.Listen(ctx, 42, func(rec models.PresenceRecord) {
		got = rec
	})
	require.NoError(t, err)
	defer unsub()

	assert.Equal(t, uint(42), got.UserID)
	assert.False(t, got.IsOnline)
	assert.Equal(t, models.PresenceStatusOffline, got.Status)
}

func TestTracker_ListenReceivesPublishedUpdates(t *testing.T) {
	tracker, _, _ := newTestTracker(t, Options{})
	ctx := context.Background()

	var mu sync.Mutex
	var seen []models.PresenceStatus
	unsub, err := tracker.Listen(ctx, 5, func(rec models.PresenceRecord) {
		mu.Lock()
		seen = append(seen, rec.Status)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, tracker.Start(ctx, 5, models.DeviceInfo{}))
	defer tracker.Stop(ctx)
	require.NoError(t, tracker.SetStatus(ctx, models.PresenceStatusBusy))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range seen {
			if s == models.PresenceStatusBusy {
				return true
			}
		}
		return false
	}, testEventuallyTimeout, testPollInterval)
}

func TestTracker_DuplicateListensAreIndependent(t *testing.T) {
	tracker, _, _ := newTestTracker(t, Options{})
	ctx := context.Background()

	var first, second atomic.Int64
	unsub1, err := tracker.Listen(ctx, 6, func(models.PresenceRecord) { first.Add(1) })
	require.NoError(t, err)
	unsub2, err := tracker.Listen(ctx, 6, func(models.PresenceRecord) { second.Add(1) })
	require.NoError(t, err)
	defer unsub2()

	// Both saw the initial synthesized record.
	require.Equal(t, int64(1), first.Load())
	require.Equal(t, int64(1), second.Load())

	unsub1()

	require.NoError(t, tracker.Start(ctx, 6, models.DeviceInfo{}))
	defer tracker.Stop(ctx)

	assert.Eventually(t, func() bool {
		return second.Load() > 1
	}, testEventuallyTimeout, testPollInterval)
	assert.Never(t, func() bool {
		return first.Load() > 1
	}, 10*testPollInterval, testPollInterval)
}

func TestTracker_StopWritesOfflineAndCancelsSubscriptions(t *testing.T) {
	tracker, _, rdb := newTestTracker(t, Options{})
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, 8, models.DeviceInfo{}))

	var calls atomic.Int64
	_, err := tracker.Listen(ctx, 8, func(models.PresenceRecord) { calls.Add(1) })
	require.NoError(t, err)

	require.NoError(t, tracker.Stop(ctx))

	rec := readRecord(t, rdb, 8)
	assert.False(t, rec.IsOnline)

	members, err := rdb.SMembers(ctx, OnlineSetKey).Result()
	require.NoError(t, err)
	assert.NotContains(t, members, "8")

	// Restart after stop is allowed.
	require.NoError(t, tracker.Start(ctx, 8, models.DeviceInfo{}))
	assert.True(t, readRecord(t, rdb, 8).IsOnline)
	require.NoError(t, tracker.Stop(ctx))
}

func TestTracker_ReapStaleForcesOffline(t *testing.T) {
	tracker, mr, rdb := newTestTracker(t, Options{TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, 11, models.DeviceInfo{}))
	require.NoError(t, tracker.Stop(ctx))

	// Simulate a silent death: user still in the online set but the
	// record key has expired.
	require.NoError(t, rdb.SAdd(ctx, OnlineSetKey, "11").Err())
	mr.Del(RecordKey(11))

	require.NoError(t, tracker.ReapStale(ctx))

	rec := readRecord(t, rdb, 11)
	assert.False(t, rec.IsOnline)
	assert.Equal(t, models.PresenceStatusOffline, rec.Status)

	members, err := rdb.SMembers(ctx, OnlineSetKey).Result()
	require.NoError(t, err)
	assert.NotContains(t, members, "11")
}

func TestTracker_GetMissingRecordIsOffline(t *testing.T) {
	tracker, _, _ := newTestTracker(t, Options{})

	rec, err := tracker.Get(context.Background(), 1234)
	require.NoError(t, err)
	assert.Equal(t, models.OfflinePresence(1234), rec)
}
