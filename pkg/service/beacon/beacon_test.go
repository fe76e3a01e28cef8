package beacon_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/service/beacon"
)

func TestNotifyOffline(t *testing.T) {
	var mu sync.Mutex
	var received *model.Envelope
	var path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		var env model.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err == nil {
			received = &env
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	b := beacon.New(server.URL, func() string { return "tok" },
		beacon.WithHTTPClient(server.Client()))

	b.NotifyOffline("ws1", model.StatusUpdate{
		UserID: "me", Status: types.UserStatusOffline, Timestamp: 99,
	})

	mu.Lock()
	defer mu.Unlock()
	gt.Value(t, path).Equal("/api/workspace/ws1/status")
	gt.Value(t, received).NotNil()

	event, err := received.Classify()
	gt.NoError(t, err).Required()
	status := gt.Cast[model.StatusEvent](t, event)
	gt.Value(t, status.Update.Status).Equal(types.UserStatusOffline)
}

func TestNotifyOffline_SwallowsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	server.Close()

	b := beacon.New(server.URL, func() string { return "" },
		beacon.WithHTTPClient(http.DefaultClient))

	// No panic, no error surface; the call simply returns
	b.NotifyOffline("ws1", model.StatusUpdate{
		UserID: "me", Status: types.UserStatusOffline, Timestamp: 1,
	})
}
