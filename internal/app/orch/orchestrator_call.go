package orch

import (
	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/rs/zerolog/log"
)

// initiateCall records a ringing call. The record is kept even when the
// receiver is offline; it goes away on end or on the caller's disconnect.
func (o *Orchestrator) initiateCall(from *app.SessionEntry, requestID string, c core.CallInitiate) bool {
	if c.ReceiverID == from.UserID {
		return o.drop(core.EvCallInitiate, metrics.ReasonForbidden, "self call")
	}
	if cur, ok := o.presence.Session(from.UserID); !ok || cur.ConnID != from.ConnID {
		return o.drop(core.EvCallInitiate, metrics.ReasonForbidden, "caller session superseded")
	}
	id := c.CallID
	if id == "" {
		id = o.newCallID()
	}
	call := domain.NewCall(id, from.UserID, c.ReceiverID, c.Offer, o.now())
	if err := o.calls.Add(call); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("call", string(id)).
			Str("user", string(from.UserID)).Msg("call id collision")
		return o.drop(core.EvCallInitiate, metrics.ReasonForbidden, "call id in use")
	}
	o.send(from, core.EvCallCreated, requestID, core.CallRef{CallID: id})
	o.sendToUser(c.ReceiverID, core.EvIncomingCall, core.IncomingCall{
		CallID:   id,
		CallerID: from.UserID,
		Offer:    c.Offer,
	})
	return true
}

func (o *Orchestrator) answerCall(from *app.SessionEntry, c core.CallAnswer) bool {
	call, ok := o.calls.Get(c.CallID)
	if !ok {
		return o.drop(core.EvCallAnswer, metrics.ReasonUnknownID, "unknown call")
	}
	if call.ReceiverID != from.UserID {
		return o.drop(core.EvCallAnswer, metrics.ReasonForbidden, "answer from non-receiver")
	}
	if err := call.Accept(c.Answer, o.now()); err != nil {
		return o.drop(core.EvCallAnswer, metrics.ReasonForbidden, "call not ringing")
	}
	o.sendToUser(call.CallerID, core.EvCallAnswered, core.CallAnswered{CallID: call.ID, Answer: c.Answer})
	return true
}

func (o *Orchestrator) rejectCall(from *app.SessionEntry, c core.CallReject) bool {
	call, ok := o.calls.Get(c.CallID)
	if !ok {
		return o.drop(core.EvCallReject, metrics.ReasonUnknownID, "unknown call")
	}
	if call.ReceiverID != from.UserID {
		return o.drop(core.EvCallReject, metrics.ReasonForbidden, "reject from non-receiver")
	}
	_ = call.End()
	o.calls.Remove(call.ID)
	o.sendToUser(call.CallerID, core.EvCallRejected, core.CallRef{CallID: call.ID})
	return true
}

func (o *Orchestrator) endCall(from *app.SessionEntry, c core.CallEnd) bool {
	call, ok := o.calls.Get(c.CallID)
	if !ok {
		return o.drop(core.EvCallEnd, metrics.ReasonUnknownID, "unknown call")
	}
	if !call.Involves(from.UserID) {
		return o.drop(core.EvCallEnd, metrics.ReasonForbidden, "end from non-participant")
	}
	o.forceEndCall(call, from.UserID)
	return true
}

// forceEndCall ends the call on behalf of u and tells the other leg once.
func (o *Orchestrator) forceEndCall(call *domain.Call, u domain.UserID) {
	if _, ok := o.calls.Remove(call.ID); !ok {
		return
	}
	_ = call.End()
	if peer, ok := call.Peer(u); ok {
		o.sendToUser(peer, core.EvCallEnded, core.CallRef{CallID: call.ID})
	}
}

func (o *Orchestrator) relayCallCandidate(from *app.SessionEntry, c core.CallCandidateRelay) bool {
	target := c.TargetUserID
	if o.opts.ValidateRelays {
		call, ok := o.calls.Get(c.CallID)
		if !ok {
			return o.drop(core.EvCallICECandidate, metrics.ReasonUnknownID, "unknown call")
		}
		peer, ok := call.Peer(from.UserID)
		if !ok || (target != "" && target != peer) {
			return o.drop(core.EvCallICECandidate, metrics.ReasonForbidden, "candidate outside call")
		}
		target = peer
	}
	if target == "" {
		return o.drop(core.EvCallICECandidate, metrics.ReasonMalformed, "candidate without target")
	}
	return o.sendToUser(target, core.EvCallICECandidate, core.CallCandidate{
		CallID:     c.CallID,
		Candidate:  c.Candidate,
		FromUserID: from.UserID,
	})
}
