package core

import (
	"encoding/json"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Wire event names. Inbound and outbound share a name when the event is
// relayed unchanged in meaning.
const (
	EvSessionReady = "session-ready"
	EvUserOnline   = "user-online"
	EvUserOffline  = "user-offline"
	EvPresenceList = "presence-list"
	EvOnlineUsers  = "online-users"
	EvWhoAmI       = "whoami"
	EvPing         = "ping"
	EvPong         = "pong"

	EvTypingStart      = "typing-start"
	EvTypingStop       = "typing-stop"
	EvMessageSend      = "message-send"
	EvNewMessage       = "new-message"
	EvMessageDelivered = "message-delivered"
	EvMessageRead      = "message-read"
	EvMessagesRead     = "messages-read"

	EvCallInitiate     = "call-initiate"
	EvCallCreated      = "call-created"
	EvIncomingCall     = "incoming-call"
	EvCallAnswer       = "call-answer"
	EvCallAnswered     = "call-answered"
	EvCallReject       = "call-reject"
	EvCallRejected     = "call-rejected"
	EvCallEnd          = "call-end"
	EvCallEnded        = "call-ended"
	EvCallICECandidate = "call-ice-candidate"

	EvLiveStart        = "live-start"
	EvLiveStarted      = "live-started"
	EvLiveList         = "live-list"
	EvLiveStreams      = "live-streams"
	EvStreamsUpdated   = "streams-updated"
	EvLiveJoin         = "live-join"
	EvViewerJoined     = "viewer-joined"
	EvLiveLeave        = "live-leave"
	EvViewerLeft       = "viewer-left"
	EvLiveEnd          = "live-end"
	EvStreamEnded      = "stream-ended"
	EvLiveSignalOffer  = "live-signal-offer"
	EvLiveSignalAnswer = "live-signal-answer"
	EvLiveSignalICE    = "live-signal-ice"
)

// Envelope is the frame layout used in both directions.
type Envelope struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func Encode(typ, requestID string, data any) (Frame, error) {
	return json.Marshal(Envelope{Type: typ, RequestID: requestID, Data: data})
}

type SessionReady struct {
	UserID       domain.UserID      `json:"userId"`
	ConnectionID domain.ConnID      `json:"connectionId"`
	IceServers   []webrtc.ICEServer `json:"iceServers"`
}

type UserPresence struct {
	UserID domain.UserID `json:"userId"`
}

type OnlineUsers struct {
	UserIDs []domain.UserID `json:"userIds"`
}

type WhoAmI struct {
	UserID       domain.UserID `json:"userId"`
	ConnectionID domain.ConnID `json:"connectionId"`
}

type TypingNotice struct {
	SenderID domain.UserID `json:"senderId"`
}

type NewMessage struct {
	Message domain.Message `json:"message"`
}

type IncomingCall struct {
	CallID   domain.CallID   `json:"callId"`
	CallerID domain.UserID   `json:"callerId"`
	Offer    json.RawMessage `json:"offer"`
}

type CallAnswered struct {
	CallID domain.CallID   `json:"callId"`
	Answer json.RawMessage `json:"answer"`
}

type CallRef struct {
	CallID domain.CallID `json:"callId"`
}

type CallCandidate struct {
	CallID     domain.CallID   `json:"callId"`
	Candidate  json.RawMessage `json:"candidate"`
	FromUserID domain.UserID   `json:"fromUserId"`
}

type StreamStarted struct {
	StreamID domain.StreamID `json:"streamId"`
}

type StreamDirectory struct {
	Streams []domain.StreamInfo `json:"streams"`
}

type ViewerNotice struct {
	StreamID domain.StreamID `json:"streamId"`
	ViewerID domain.ConnID   `json:"viewerId"`
}

type StreamRef struct {
	StreamID domain.StreamID `json:"streamId"`
}

type LiveSignal struct {
	StreamID domain.StreamID `json:"streamId"`
	From     domain.ConnID   `json:"from"`
	Payload  json.RawMessage `json:"payload"`
}
