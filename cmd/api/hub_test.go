package main

import (
	"errors"
	"testing"

	"github.com/albertstanley/messenger-backend/internal/data"
)

type fakeSender struct {
	last Event
	got  bool
	fail bool
}

func (f *fakeSender) Send(ev Event) error {
	if f.fail {
		return errors.New("send fail")
	}
	f.last = ev
	f.got = true
	return nil
}

func TestEventHub_RegisterAndSend(t *testing.T) {
	hub := NewEventHub()

	senderA := &fakeSender{}
	senderB := &fakeSender{}

	idA := hub.Register("ann@x-com", senderA)
	_ = hub.Register("ann@x-com", senderB) // second connection

	ev := Event{Type: "message", ConversationID: "conversation_m1"}
	if err := hub.SendToUser("ann@x-com", ev); err != nil {
		t.Fatalf("expected send success, got error: %v", err)
	}
	if !senderA.got || senderA.last.ConversationID != "conversation_m1" {
		t.Fatalf("sender A did not receive event")
	}

	// Unregister senderA and ensure it no longer receives events
	hub.Unregister("ann@x-com", idA)
	senderA.got = false

	if err := hub.SendToUser("ann@x-com", Event{Type: "message", ConversationID: "conversation_m2"}); err != nil {
		t.Fatalf("expected send success after unregistering one connection: %v", err)
	}
	if senderA.got {
		t.Fatalf("sender A should not have received event after unregister")
	}
	if senderB.last.ConversationID != "conversation_m2" {
		t.Fatalf("sender B did not receive second event")
	}
}

func TestEventHub_SendToOffline(t *testing.T) {
	hub := NewEventHub()

	if err := hub.SendToUser("nobody@x-com", Event{}); err == nil {
		t.Fatalf("expected error when sending to offline user")
	}
}

func TestEventHub_SendPartialFailure(t *testing.T) {
	hub := NewEventHub()

	ok := &fakeSender{}
	bad := &fakeSender{fail: true}

	_ = hub.Register("d@x-com", ok)
	_ = hub.Register("d@x-com", bad)

	if err := hub.SendToUser("d@x-com", Event{Type: "message"}); err == nil {
		t.Fatalf("expected error due to partial sender failure")
	}

	// After a partial failure, the failing connection should have been
	// automatically unregistered. A subsequent send should succeed and only
	// reach the healthy sender.
	if err := hub.SendToUser("d@x-com", Event{Type: "conversation"}); err != nil {
		t.Fatalf("expected send to succeed after cleanup of failed connections: %v", err)
	}
	if ok.last.Type != "conversation" {
		t.Fatalf("healthy sender did not receive event after cleanup")
	}
}

// A user connecting or dropping a second websocket while a fan-out delivery
// to them is in flight must not trip on the hub's internal maps. Run with
// -race to verify.
func TestEventHub_ConcurrentRegisterAndSend(t *testing.T) {
	hub := NewEventHub()
	_ = hub.Register("ann@x-com", &fakeSender{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			id := hub.Register("ann@x-com", &fakeSender{})
			hub.Unregister("ann@x-com", id)
		}
	}()

	for i := 0; i < 200; i++ {
		if err := hub.SendToUser("ann@x-com", Event{Type: "message"}); err != nil {
			t.Fatalf("send failed mid-churn: %v", err)
		}
	}
	<-done
}

func TestEventHub_NotifierFanout(t *testing.T) {
	hub := NewEventHub()

	annConn := &fakeSender{}
	bobConn := &fakeSender{}
	_ = hub.Register("ann@x-com", annConn)
	_ = hub.Register("bob@x-com", bobConn)

	rec := data.MessageRecord{ConversationID: "conversation_m1", MessageID: "m1", Content: "hi"}
	hub.MessageStored(rec, [2]string{"ann@x-com", "bob@x-com"})

	if !annConn.got || !bobConn.got {
		t.Fatalf("both participants should receive the message event")
	}
	if bobConn.last.Message == nil || bobConn.last.Message.Content != "hi" {
		t.Fatalf("message payload missing: %+v", bobConn.last)
	}

	bobConn.got = false
	hub.SummaryUpdated("bob@x-com", data.ConversationSummary{OwnerKey: "bob@x-com", ConversationID: "conversation_m1"})
	if !bobConn.got || bobConn.last.Type != "conversation" {
		t.Fatalf("owner should receive the index update event: %+v", bobConn.last)
	}
	if annConn.last.Type != "message" {
		t.Fatalf("index update should only go to its owner")
	}
}
