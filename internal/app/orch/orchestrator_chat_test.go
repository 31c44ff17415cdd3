package orch

import (
	"testing"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMessageRelay(t *testing.T) {
	h := newHarness(t, Options{})
	alice := h.connect("alice")
	bob := h.connect("bob")

	h.sendReq(alice, "m1", core.MessageSend{
		ReceiverID: "bob",
		Message:    domain.Message{ID: "msg-1", SenderID: "mallory", ReceiverID: "carol", Content: "hi"},
	})

	var got core.NewMessage
	bob.conn.last(t, core.EvNewMessage, &got)
	assert.Equal(t, "msg-1", got.Message.ID)
	assert.Equal(t, domain.UserID("alice"), got.Message.SenderID)
	assert.Equal(t, domain.UserID("bob"), got.Message.ReceiverID)
	assert.Equal(t, "hi", got.Message.Content)

	var receipt domain.DeliveryReceipt
	r := alice.conn.last(t, core.EvMessageDelivered, &receipt)
	assert.Equal(t, "m1", r.RequestID)
	assert.Equal(t, "msg-1", receipt.MessageID)
	assert.False(t, receipt.DeliveredAt.IsZero())
}

func TestMessageToOfflineUserIsNoop(t *testing.T) {
	h := newHarness(t, Options{})
	alice := h.connect("alice")

	h.send(alice, core.MessageSend{ReceiverID: "bob", Message: domain.Message{ID: "msg-1"}})

	assert.Zero(t, alice.conn.count(core.EvMessageDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.o.metrics.Dropped.WithLabelValues(metrics.ReasonOffline)))

	bob := h.connect("bob")
	assert.Zero(t, bob.conn.count(core.EvNewMessage))
	assert.Zero(t, alice.conn.count(core.EvMessageDelivered))
}

func TestMarkRead(t *testing.T) {
	h := newHarness(t, Options{})
	alice := h.connect("alice")
	bob := h.connect("bob")

	h.send(bob, core.MessageRead{MessageIDs: []string{"m1", "m2"}, SenderID: "alice"})

	var rr domain.ReadReceipt
	alice.conn.last(t, core.EvMessagesRead, &rr)
	assert.Equal(t, []string{"m1", "m2"}, rr.MessageIDs)
	assert.Equal(t, domain.UserID("bob"), rr.ReadBy)

	h.disconnect(alice)
	h.send(bob, core.MessageRead{MessageIDs: []string{"m3"}, SenderID: "alice"})
	assert.Equal(t, 1, alice.conn.count(core.EvMessagesRead))
}

func TestTypingRelay(t *testing.T) {
	h := newHarness(t, Options{})
	alice := h.connect("alice")
	bob := h.connect("bob")

	h.send(alice, core.TypingStart{ReceiverID: "bob"})
	h.send(alice, core.TypingStop{ReceiverID: "bob"})
	h.send(alice, core.TypingStart{ReceiverID: "carol"})

	var n core.TypingNotice
	bob.conn.last(t, core.EvTypingStart, &n)
	assert.Equal(t, domain.UserID("alice"), n.SenderID)
	assert.Equal(t, 1, bob.conn.count(core.EvTypingStart))
	assert.Equal(t, 1, bob.conn.count(core.EvTypingStop))
}

func TestMessageFollowsNewestSession(t *testing.T) {
	h := newHarness(t, Options{})
	alice := h.connect("alice")
	old := h.connect("bob")
	current := h.connect("bob")

	h.send(alice, core.MessageSend{ReceiverID: "bob", Message: domain.Message{ID: "m"}})

	assert.Zero(t, old.conn.count(core.EvNewMessage))
	assert.Equal(t, 1, current.conn.count(core.EvNewMessage))
}
