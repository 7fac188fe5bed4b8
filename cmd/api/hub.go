package main

import (
	"fmt"
	"log"
	"sync"

	"github.com/albertstanley/messenger-backend/internal/data"
)

// Event is the payload pushed to live subscribers: either a new message in
// one of their conversations or an updated entry of their own conversation
// index.
type Event struct {
	Type           string                    `json:"type"` // "message" or "conversation"
	ConversationID string                    `json:"conversationId"`
	Message        *data.MessageRecord       `json:"message,omitempty"`
	Summary        *data.ConversationSummary `json:"summary,omitempty"`
}

// EventSender is the minimal interface the hub needs from a connection: the
// ability to push one event to the connected client.
type EventSender interface {
	Send(Event) error
}

// EventHub manages active subscriptions for connected users. It maps user
// keys to one or more live connections so the fan-out engine can push events
// to every currently-connected endpoint for a user.
type EventHub struct {
	mu      sync.RWMutex
	streams map[string]map[int64]EventSender
	nextID  int64
}

// NewEventHub creates a new hub instance.
func NewEventHub() *EventHub {
	return &EventHub{streams: make(map[string]map[int64]EventSender)}
}

// Register registers a connection for the given user key and returns a
// connection id used to unregister it when the connection closes.
func (h *EventHub) Register(userKey string, s EventSender) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streams[userKey]; !ok {
		h.streams[userKey] = make(map[int64]EventSender)
	}

	h.nextID++
	id := h.nextID
	h.streams[userKey][id] = s
	return id
}

// Unregister removes a previously-registered connection.
func (h *EventHub) Unregister(userKey string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.streams[userKey]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.streams, userKey)
		}
	}
}

// SendToUser attempts to deliver the event to all currently-connected
// endpoints for the user. If the user is not connected, returns an error.
// Delivery is best-effort: every connection is tried, the first error is
// returned, and connections that failed are dropped from the hub so stale
// streams don't accumulate.
func (h *EventHub) SendToUser(userKey string, ev Event) error {
	// Snapshot the user's connections under the lock; Register/Unregister
	// mutate the inner map concurrently, so it must not be iterated live.
	type stream struct {
		id   int64
		conn EventSender
	}
	h.mu.RLock()
	conns := make([]stream, 0, len(h.streams[userKey]))
	for id, conn := range h.streams[userKey] {
		conns = append(conns, stream{id: id, conn: conn})
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("user %s not connected", userKey)
	}

	var firstErr error
	var failedIDs []int64

	for _, s := range conns {
		if err := s.conn.Send(ev); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, s.id)
		}
	}

	for _, id := range failedIDs {
		h.Unregister(userKey, id)
	}

	return firstErr
}

// MessageStored implements chat.Notifier: push the stored message to both
// participants. Offline users simply miss the live event; they read the log
// on next load.
func (h *EventHub) MessageStored(rec data.MessageRecord, participants [2]string) {
	ev := Event{Type: "message", ConversationID: rec.ConversationID, Message: &rec}
	for _, key := range participants {
		if err := h.SendToUser(key, ev); err != nil {
			log.Printf("live delivery to %s skipped (offline or failed): %v", key, err)
		}
	}
}

// SummaryUpdated implements chat.Notifier: push the refreshed index entry to
// its owner.
func (h *EventHub) SummaryUpdated(ownerKey string, summary data.ConversationSummary) {
	ev := Event{Type: "conversation", ConversationID: summary.ConversationID, Summary: &summary}
	if err := h.SendToUser(ownerKey, ev); err != nil {
		log.Printf("index update delivery to %s skipped (offline or failed): %v", ownerKey, err)
	}
}
