package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/logging"
)

// subscriberBuffer is how many pending events a slow subscriber may hold
// before we start dropping for that subscriber
const subscriberBuffer = 64

// heartbeatInterval keeps idle SSE connections alive through proxies
const heartbeatInterval = 30 * time.Second

type subscriber struct {
	workspaceID types.WorkspaceID
	events      chan []byte
}

// Hub fans push events out to the SSE subscribers of each workspace
type Hub struct {
	mu   sync.RWMutex
	subs map[types.WorkspaceID]map[*subscriber]struct{}
}

var _ interfaces.Publisher = &Hub{}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[types.WorkspaceID]map[*subscriber]struct{}),
	}
}

// Publish delivers an envelope to every subscriber of a workspace. Slow
// subscribers lose events rather than block the publisher; they recover
// through the next resync.
func (h *Hub) Publish(workspaceID types.WorkspaceID, env *model.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Default().Error("failed to encode push event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[workspaceID] {
		select {
		case sub.events <- data:
		default:
			logging.Default().Warn("dropping push event for slow subscriber",
				"workspaceID", workspaceID)
		}
	}
}

func (h *Hub) subscribe(workspaceID types.WorkspaceID) *subscriber {
	sub := &subscriber{
		workspaceID: workspaceID,
		events:      make(chan []byte, subscriberBuffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.subs[workspaceID]; !exists {
		h.subs[workspaceID] = make(map[*subscriber]struct{})
	}
	h.subs[workspaceID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, exists := h.subs[sub.workspaceID]; exists {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.workspaceID)
		}
	}
}

// SubscriberCount reports the live subscribers of a workspace
func (h *Hub) SubscriberCount(workspaceID types.WorkspaceID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[workspaceID])
}

// streamHandler serves the SSE push stream for one workspace scope
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID := types.WorkspaceID(pathParam(r, "workspaceID"))
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.hub.subscribe(workspaceID)
	defer s.hub.unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// The welcome event tells the client its subscription is live and a
	// roster resync is in order
	welcome, err := json.Marshal(model.NewMembershipEnvelope(types.EventTypeWelcome, workspaceID))
	if err == nil {
		writeSSE(w, welcome)
		flusher.Flush()
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case data := <-sub.events:
			if err := writeSSE(w, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}
