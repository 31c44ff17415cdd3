package core

import (
	"encoding/json"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// Command is a decoded client event. The transport validates shape; the
// dispatcher validates state.
type Command interface {
	Event() string
}

// Inbound is one client event queued for the dispatcher.
type Inbound struct {
	ConnID    domain.ConnID
	RequestID string
	Command   Command
}

type Ping struct{}

type WhoAmIRequest struct{}

type PresenceListRequest struct{}

type TypingStart struct {
	ReceiverID domain.UserID
}

type TypingStop struct {
	ReceiverID domain.UserID
}

type MessageSend struct {
	ReceiverID domain.UserID
	Message    domain.Message
}

type MessageRead struct {
	MessageIDs []string
	SenderID   domain.UserID
}

type CallInitiate struct {
	ReceiverID domain.UserID
	CallID     domain.CallID
	Offer      json.RawMessage
}

type CallAnswer struct {
	CallID domain.CallID
	Answer json.RawMessage
}

type CallReject struct {
	CallID domain.CallID
}

type CallEnd struct {
	CallID domain.CallID
}

type CallCandidateRelay struct {
	CallID       domain.CallID
	Candidate    json.RawMessage
	TargetUserID domain.UserID
}

type LiveStart struct {
	Title string
}

type LiveList struct{}

type LiveJoin struct {
	StreamID domain.StreamID
}

type LiveLeave struct {
	StreamID domain.StreamID
}

type LiveEnd struct {
	StreamID domain.StreamID
}

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "ice"
)

// LiveSignalRelay carries opaque negotiation data between a host and one
// viewer. To is only meaningful when the host sends.
type LiveSignalRelay struct {
	Kind     SignalKind
	StreamID domain.StreamID
	To       domain.ConnID
	Payload  json.RawMessage
}

func (Ping) Event() string                { return EvPing }
func (WhoAmIRequest) Event() string       { return EvWhoAmI }
func (PresenceListRequest) Event() string { return EvPresenceList }
func (TypingStart) Event() string         { return EvTypingStart }
func (TypingStop) Event() string          { return EvTypingStop }
func (MessageSend) Event() string         { return EvMessageSend }
func (MessageRead) Event() string         { return EvMessageRead }
func (CallInitiate) Event() string        { return EvCallInitiate }
func (CallAnswer) Event() string          { return EvCallAnswer }
func (CallReject) Event() string          { return EvCallReject }
func (CallEnd) Event() string             { return EvCallEnd }
func (CallCandidateRelay) Event() string  { return EvCallICECandidate }
func (LiveStart) Event() string           { return EvLiveStart }
func (LiveList) Event() string            { return EvLiveList }
func (LiveJoin) Event() string            { return EvLiveJoin }
func (LiveLeave) Event() string           { return EvLiveLeave }
func (LiveEnd) Event() string             { return EvLiveEnd }

func (c LiveSignalRelay) Event() string {
	switch c.Kind {
	case SignalOffer:
		return EvLiveSignalOffer
	case SignalAnswer:
		return EvLiveSignalAnswer
	}
	return EvLiveSignalICE
}
