package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type CallID string

func NewCallID() CallID { return CallID(uuid.NewString()) }

type CallStatus string

const (
	CallRinging CallStatus = "ringing"
	CallActive  CallStatus = "active"
	CallEnded   CallStatus = "ended"
)

var ErrInvalidTransition = errors.New("invalid call transition")

// Call is a one-to-one call with exactly two legs.
// Status only moves forward: ringing -> active -> ended, or ringing -> ended.
type Call struct {
	ID         CallID          `json:"callId"`
	CallerID   UserID          `json:"callerId"`
	ReceiverID UserID          `json:"receiverId"`
	Offer      json.RawMessage `json:"offer"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Status     CallStatus      `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	AnsweredAt *time.Time      `json:"answeredAt,omitempty"`
}

func NewCall(id CallID, caller, receiver UserID, offer json.RawMessage, now time.Time) *Call {
	return &Call{
		ID:         id,
		CallerID:   caller,
		ReceiverID: receiver,
		Offer:      offer,
		Status:     CallRinging,
		CreatedAt:  now,
	}
}

// Accept stores the answer and moves a ringing call to active.
func (c *Call) Accept(answer json.RawMessage, now time.Time) error {
	if c.Status != CallRinging {
		return ErrInvalidTransition
	}
	c.Answer = answer
	c.Status = CallActive
	c.AnsweredAt = &now
	return nil
}

func (c *Call) End() error {
	if c.Status == CallEnded {
		return ErrInvalidTransition
	}
	c.Status = CallEnded
	return nil
}

func (c *Call) Involves(u UserID) bool {
	return u == c.CallerID || u == c.ReceiverID
}

// Peer returns the other leg relative to u.
func (c *Call) Peer(u UserID) (UserID, bool) {
	switch u {
	case c.CallerID:
		return c.ReceiverID, true
	case c.ReceiverID:
		return c.CallerID, true
	}
	return "", false
}
