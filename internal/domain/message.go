package domain

import "time"

// Message is an already persisted direct message. The hub only forwards it.
type Message struct {
	ID         string    `json:"messageId"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

type DeliveryReceipt struct {
	MessageID   string    `json:"messageId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type ReadReceipt struct {
	MessageIDs []string  `json:"messageIds"`
	ReadBy     UserID    `json:"readBy"`
	ReadAt     time.Time `json:"readAt"`
}
