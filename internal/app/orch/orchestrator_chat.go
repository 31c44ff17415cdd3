package orch

import (
	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

// typing forwards at most once; there is no server-side expiry.
func (o *Orchestrator) typing(from *app.SessionEntry, typ string, to domain.UserID) bool {
	return o.sendToUser(to, typ, core.TypingNotice{SenderID: from.UserID})
}

func (o *Orchestrator) sendMessage(from *app.SessionEntry, requestID string, c core.MessageSend) bool {
	msg := c.Message
	msg.SenderID = from.UserID
	msg.ReceiverID = c.ReceiverID
	if !o.sendToUser(c.ReceiverID, core.EvNewMessage, core.NewMessage{Message: msg}) {
		return false
	}
	o.send(from, core.EvMessageDelivered, requestID, domain.DeliveryReceipt{
		MessageID:   msg.ID,
		DeliveredAt: o.now(),
	})
	return true
}

func (o *Orchestrator) markRead(from *app.SessionEntry, c core.MessageRead) bool {
	return o.sendToUser(c.SenderID, core.EvMessagesRead, domain.ReadReceipt{
		MessageIDs: c.MessageIDs,
		ReadBy:     from.UserID,
		ReadAt:     o.now(),
	})
}
