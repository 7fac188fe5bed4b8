// Package chat implements the dual-write fan-out protocol for 1:1
// messaging: one message append plus a denormalized preview update in each
// participant's conversation index.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/albertstanley/messenger-backend/internal/data"

	"github.com/google/uuid"
)

// MessageLog is the append side of the per-conversation message log.
type MessageLog interface {
	Append(ctx context.Context, rec data.MessageRecord) error
}

// ConversationIndex is the summary side of the fan-out: creating and
// updating per-owner conversation previews.
type ConversationIndex interface {
	CreateSummary(ctx context.Context, summary data.ConversationSummary) error
	UpdateLatest(ctx context.Context, ownerKey, conversationID string, latest data.LatestMessage) error
}

// Notifier receives events after each successful store write so live
// subscribers see new messages and preview updates. Delivery is best-effort;
// implementations must not block.
type Notifier interface {
	MessageStored(rec data.MessageRecord, participants [2]string)
	SummaryUpdated(ownerKey string, summary data.ConversationSummary)
}

// Participant identifies one side of a conversation.
type Participant struct {
	Key         string
	DisplayName string
}

// SendStatus records the outcome of each fan-out step. The steps are
// independent round trips with no transaction across them, so a send can
// succeed partially: the message durably stored but one preview stale.
// Earlier successful steps are never rolled back.
type SendStatus struct {
	MessageStored        bool `json:"messageStored"`
	SenderSummaryUpdated bool `json:"senderSummaryUpdated"`
	PeerSummaryUpdated   bool `json:"peerSummaryUpdated"`
}

// Synced reports whether every step completed, i.e. both participants'
// previews agree with the message log.
func (s SendStatus) Synced() bool {
	return s.MessageStored && s.SenderSummaryUpdated && s.PeerSummaryUpdated
}

// Engine runs the fan-out pipeline. Sends on the same conversation are
// serialized through a per-conversation lock so two concurrent sends cannot
// interleave their store writes; different conversations proceed in
// parallel.
type Engine struct {
	msgs   MessageLog
	convs  ConversationIndex
	notify Notifier // optional

	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	sync.Mutex
	refs int
}

// NewEngine returns an Engine wired to the given stores. notify may be nil.
func NewEngine(msgs MessageLog, convs ConversationIndex, notify Notifier) *Engine {
	return &Engine{
		msgs:   msgs,
		convs:  convs,
		notify: notify,
		locks:  map[string]*convLock{},
	}
}

// lockConversation acquires the conversation's lock and returns the release
// function. Locks are reference-counted so the map does not grow with every
// conversation ever touched.
func (e *Engine) lockConversation(conversationID string) func() {
	e.mu.Lock()
	l, ok := e.locks[conversationID]
	if !ok {
		l = &convLock{}
		e.locks[conversationID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, conversationID)
		}
		e.mu.Unlock()
	}
}

// Send appends a message to an existing conversation and fans the preview
// out to both participants' indexes, sender side first. A failed append
// aborts the fan-out; a failed sender-side preview update does not stop the
// peer-side update from being attempted. The returned status says exactly
// which steps took effect and the returned error joins the step failures.
func (e *Engine) Send(ctx context.Context, conversationID string, sender, peer Participant, kind, content string) (data.MessageRecord, SendStatus, error) {
	rec := data.MessageRecord{
		ConversationID: conversationID,
		MessageID:      uuid.NewString(),
		SenderKey:      sender.Key,
		Kind:           kind,
		Content:        content,
		SentAt:         time.Now().UTC(),
	}

	unlock := e.lockConversation(conversationID)
	defer unlock()

	var status SendStatus

	// Step 1: the message itself. Nothing else is attempted if this fails,
	// because there would be no durable fact to fan out.
	if err := e.msgs.Append(ctx, rec); err != nil {
		return rec, status, fmt.Errorf("append message: %w", err)
	}
	status.MessageStored = true
	if e.notify != nil {
		e.notify.MessageStored(rec, [2]string{sender.Key, peer.Key})
	}

	var err error
	status.SenderSummaryUpdated, status.PeerSummaryUpdated, err = e.updateSummaries(ctx, conversationID, sender, peer, rec)
	return rec, status, err
}

// CreateConversation starts a new conversation with its first message: one
// summary per participant (mirrored perspectives, same id), then the message
// append. The conversation id is derived from the first message's id. A
// failed summary creation aborts the remaining steps; already-created state
// is left in place, not rolled back.
func (e *Engine) CreateConversation(ctx context.Context, sender, peer Participant, kind, content string) (string, data.MessageRecord, SendStatus, error) {
	messageID := uuid.NewString()
	conversationID := "conversation_" + messageID

	rec := data.MessageRecord{
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderKey:      sender.Key,
		Kind:           kind,
		Content:        content,
		SentAt:         time.Now().UTC(),
	}
	latest := data.LatestMessage{Date: rec.SentAt, Text: rec.Content}

	unlock := e.lockConversation(conversationID)
	defer unlock()

	var status SendStatus

	senderSummary := data.ConversationSummary{
		OwnerKey:        sender.Key,
		ConversationID:  conversationID,
		PeerKey:         peer.Key,
		PeerDisplayName: peer.DisplayName,
		LatestMessage:   latest,
	}
	if err := e.convs.CreateSummary(ctx, senderSummary); err != nil {
		return conversationID, rec, status, fmt.Errorf("create sender summary: %w", err)
	}
	status.SenderSummaryUpdated = true
	if e.notify != nil {
		e.notify.SummaryUpdated(sender.Key, senderSummary)
	}

	peerSummary := data.ConversationSummary{
		OwnerKey:        peer.Key,
		ConversationID:  conversationID,
		PeerKey:         sender.Key,
		PeerDisplayName: sender.DisplayName,
		LatestMessage:   latest,
	}
	if err := e.convs.CreateSummary(ctx, peerSummary); err != nil {
		return conversationID, rec, status, fmt.Errorf("create peer summary: %w", err)
	}
	status.PeerSummaryUpdated = true
	if e.notify != nil {
		e.notify.SummaryUpdated(peer.Key, peerSummary)
	}

	if err := e.msgs.Append(ctx, rec); err != nil {
		return conversationID, rec, status, fmt.Errorf("append first message: %w", err)
	}
	status.MessageStored = true
	if e.notify != nil {
		e.notify.MessageStored(rec, [2]string{sender.Key, peer.Key})
	}

	return conversationID, rec, status, nil
}

// updateSummaries runs steps 2 and 3 of the send pipeline: overwrite the
// latestMessage preview in the sender's index, then the peer's. The two
// writes address independent documents, so one failing does not gate the
// other.
func (e *Engine) updateSummaries(ctx context.Context, conversationID string, sender, peer Participant, rec data.MessageRecord) (senderOK, peerOK bool, _ error) {
	latest := data.LatestMessage{Date: rec.SentAt, Text: rec.Content}
	var errs []error

	if err := e.convs.UpdateLatest(ctx, sender.Key, conversationID, latest); err != nil {
		errs = append(errs, fmt.Errorf("update sender summary: %w", err))
	} else {
		senderOK = true
		if e.notify != nil {
			e.notify.SummaryUpdated(sender.Key, data.ConversationSummary{
				OwnerKey:        sender.Key,
				ConversationID:  conversationID,
				PeerKey:         peer.Key,
				PeerDisplayName: peer.DisplayName,
				LatestMessage:   latest,
			})
		}
	}

	if err := e.convs.UpdateLatest(ctx, peer.Key, conversationID, latest); err != nil {
		errs = append(errs, fmt.Errorf("update peer summary: %w", err))
	} else {
		peerOK = true
		if e.notify != nil {
			e.notify.SummaryUpdated(peer.Key, data.ConversationSummary{
				OwnerKey:        peer.Key,
				ConversationID:  conversationID,
				PeerKey:         sender.Key,
				PeerDisplayName: sender.DisplayName,
				LatestMessage:   latest,
			})
		}
	}
	return senderOK, peerOK, errors.Join(errs...)
}
