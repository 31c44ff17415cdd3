package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/adapters/rtc"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/pion/webrtc/v4"
)

var (
	ErrUnknownType  = errors.New("unknown event type")
	ErrMissingField = errors.New("missing field")
)

type inboundEnvelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data"`
}

// Decoder turns a client frame into a typed command. Shape and payload
// checks happen here; state checks belong to the dispatcher.
type Decoder struct {
	Validator rtc.Validator
}

func (d Decoder) Decode(frame []byte) (requestID string, cmd core.Command, err error) {
	var env inboundEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("envelope: %w", err)
	}
	fn, ok := decoders[env.Type]
	if !ok {
		return env.RequestID, nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	cmd, err = fn(d, env.Data)
	if err != nil {
		return env.RequestID, nil, fmt.Errorf("%s: %w", env.Type, err)
	}
	return env.RequestID, cmd, nil
}

func bind[T any](data json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

func required(name string, ok bool) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

type receiverPayload struct {
	ReceiverID domain.UserID `json:"receiverId"`
}

type messageSendPayload struct {
	ReceiverID domain.UserID   `json:"receiverId"`
	Message    *domain.Message `json:"message"`
}

type messageReadPayload struct {
	MessageIDs []string      `json:"messageIds"`
	SenderID   domain.UserID `json:"senderId"`
}

type callInitiatePayload struct {
	ReceiverID domain.UserID   `json:"receiverId"`
	CallID     domain.CallID   `json:"callId"`
	Offer      json.RawMessage `json:"offer"`
}

type callAnswerPayload struct {
	CallID domain.CallID   `json:"callId"`
	Answer json.RawMessage `json:"answer"`
}

type callRefPayload struct {
	CallID domain.CallID `json:"callId"`
}

type callCandidatePayload struct {
	CallID       domain.CallID   `json:"callId"`
	Candidate    json.RawMessage `json:"candidate"`
	TargetUserID domain.UserID   `json:"targetUserId"`
}

type liveStartPayload struct {
	Title string `json:"title"`
}

type streamRefPayload struct {
	StreamID domain.StreamID `json:"streamId"`
}

type liveSignalPayload struct {
	StreamID domain.StreamID `json:"streamId"`
	To       domain.ConnID   `json:"to"`
	Payload  json.RawMessage `json:"payload"`
}

type decodeFunc func(d Decoder, data json.RawMessage) (core.Command, error)

func noData(cmd core.Command) decodeFunc {
	return func(Decoder, json.RawMessage) (core.Command, error) { return cmd, nil }
}

var decoders = map[string]decodeFunc{
	core.EvPing:         noData(core.Ping{}),
	core.EvWhoAmI:       noData(core.WhoAmIRequest{}),
	core.EvPresenceList: noData(core.PresenceListRequest{}),
	core.EvLiveList:     noData(core.LiveList{}),

	core.EvTypingStart: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[receiverPayload](data)
		if err != nil {
			return nil, err
		}
		return core.TypingStart{ReceiverID: p.ReceiverID}, required("receiverId", p.ReceiverID != "")
	},
	core.EvTypingStop: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[receiverPayload](data)
		if err != nil {
			return nil, err
		}
		return core.TypingStop{ReceiverID: p.ReceiverID}, required("receiverId", p.ReceiverID != "")
	},

	core.EvMessageSend: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[messageSendPayload](data)
		if err != nil {
			return nil, err
		}
		if err := required("receiverId", p.ReceiverID != ""); err != nil {
			return nil, err
		}
		if err := required("message.messageId", p.Message != nil && p.Message.ID != ""); err != nil {
			return nil, err
		}
		return core.MessageSend{ReceiverID: p.ReceiverID, Message: *p.Message}, nil
	},
	core.EvMessageRead: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[messageReadPayload](data)
		if err != nil {
			return nil, err
		}
		if err := required("messageIds", len(p.MessageIDs) > 0); err != nil {
			return nil, err
		}
		return core.MessageRead{MessageIDs: p.MessageIDs, SenderID: p.SenderID}, required("senderId", p.SenderID != "")
	},

	core.EvCallInitiate: func(d Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[callInitiatePayload](data)
		if err != nil {
			return nil, err
		}
		if err := required("receiverId", p.ReceiverID != ""); err != nil {
			return nil, err
		}
		if err := d.Validator.Description(p.Offer, webrtc.SDPTypeOffer); err != nil {
			return nil, fmt.Errorf("offer: %w", err)
		}
		return core.CallInitiate{ReceiverID: p.ReceiverID, CallID: p.CallID, Offer: p.Offer}, nil
	},
	core.EvCallAnswer: func(d Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[callAnswerPayload](data)
		if err != nil {
			return nil, err
		}
		if err := required("callId", p.CallID != ""); err != nil {
			return nil, err
		}
		if err := d.Validator.Description(p.Answer, webrtc.SDPTypeAnswer); err != nil {
			return nil, fmt.Errorf("answer: %w", err)
		}
		return core.CallAnswer{CallID: p.CallID, Answer: p.Answer}, nil
	},
	core.EvCallReject: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[callRefPayload](data)
		if err != nil {
			return nil, err
		}
		return core.CallReject{CallID: p.CallID}, required("callId", p.CallID != "")
	},
	core.EvCallEnd: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[callRefPayload](data)
		if err != nil {
			return nil, err
		}
		return core.CallEnd{CallID: p.CallID}, required("callId", p.CallID != "")
	},
	core.EvCallICECandidate: func(d Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[callCandidatePayload](data)
		if err != nil {
			return nil, err
		}
		if err := required("callId", p.CallID != ""); err != nil {
			return nil, err
		}
		if err := d.Validator.Candidate(p.Candidate); err != nil {
			return nil, fmt.Errorf("candidate: %w", err)
		}
		return core.CallCandidateRelay{CallID: p.CallID, Candidate: p.Candidate, TargetUserID: p.TargetUserID}, nil
	},

	core.EvLiveStart: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		if len(data) == 0 {
			return core.LiveStart{}, nil
		}
		p, err := bind[liveStartPayload](data)
		if err != nil {
			return nil, err
		}
		return core.LiveStart{Title: p.Title}, nil
	},
	core.EvLiveJoin: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[streamRefPayload](data)
		if err != nil {
			return nil, err
		}
		return core.LiveJoin{StreamID: p.StreamID}, required("streamId", p.StreamID != "")
	},
	core.EvLiveLeave: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[streamRefPayload](data)
		if err != nil {
			return nil, err
		}
		return core.LiveLeave{StreamID: p.StreamID}, required("streamId", p.StreamID != "")
	},
	core.EvLiveEnd: func(_ Decoder, data json.RawMessage) (core.Command, error) {
		p, err := bind[streamRefPayload](data)
		if err != nil {
			return nil, err
		}
		return core.LiveEnd{StreamID: p.StreamID}, required("streamId", p.StreamID != "")
	},
	core.EvLiveSignalOffer: func(d Decoder, data json.RawMessage) (core.Command, error) {
		return d.liveSignal(core.SignalOffer, data)
	},
	core.EvLiveSignalAnswer: func(d Decoder, data json.RawMessage) (core.Command, error) {
		return d.liveSignal(core.SignalAnswer, data)
	},
	core.EvLiveSignalICE: func(d Decoder, data json.RawMessage) (core.Command, error) {
		return d.liveSignal(core.SignalCandidate, data)
	},
}

// liveSignal only checks the routing fields. Live payloads are relayed as
// the peers sent them; strict SDP and candidate checks cover calls only.
func (d Decoder) liveSignal(kind core.SignalKind, data json.RawMessage) (core.Command, error) {
	p, err := bind[liveSignalPayload](data)
	if err != nil {
		return nil, err
	}
	if err := required("streamId", p.StreamID != ""); err != nil {
		return nil, err
	}
	if err := required("payload", len(p.Payload) > 0 && string(p.Payload) != "null"); err != nil {
		return nil, err
	}
	if kind == core.SignalOffer {
		if err := required("to", p.To != ""); err != nil {
			return nil, err
		}
	}
	return core.LiveSignalRelay{Kind: kind, StreamID: p.StreamID, To: p.To, Payload: p.Payload}, nil
}
