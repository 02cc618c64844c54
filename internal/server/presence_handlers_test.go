package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"splitpay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPresenceDefaultsToOffline(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.createUser(t, "")
	bob := f.createUser(t, "")

	resp := f.request(t, http.MethodGet, fmt.Sprintf("/api/presence/%d", bob.ID), alice.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "offline", body["status"])
	assert.EqualValues(t, bob.ID, body["user_id"])
}

func TestGetPresenceReflectsActiveSession(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.createUser(t, "")
	bob := f.createUser(t, "")

	f.srv.hub.Sessions().Register(context.Background(), bob.ID, models.DeviceInfo{Platform: "ios"})
	t.Cleanup(func() { f.srv.hub.Sessions().Stop(context.Background()) })

	resp := f.request(t, http.MethodGet, fmt.Sprintf("/api/presence/%d", bob.ID), alice.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "online", body["status"])
}

func TestUpdatePresenceStatus(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.createUser(t, "")

	// No active websocket session yet
	resp := f.request(t, http.MethodPut, "/api/presence/status", alice.ID, map[string]string{"status": "busy"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	f.srv.hub.Sessions().Register(context.Background(), alice.ID, models.DeviceInfo{})
	t.Cleanup(func() { f.srv.hub.Sessions().Stop(context.Background()) })

	resp = f.request(t, http.MethodPut, "/api/presence/status", alice.ID, map[string]string{"status": "busy"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	record, err := f.srv.tracker.Get(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PresenceStatusBusy, record.Status)

	// Unknown statuses are rejected
	resp = f.request(t, http.MethodPut, "/api/presence/status", alice.ID, map[string]string{"status": "teleporting"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}
