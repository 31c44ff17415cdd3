package orch

import (
	"strings"
	"unicode/utf8"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
)

func (o *Orchestrator) startStream(from *app.SessionEntry, requestID string, c core.LiveStart) bool {
	s := domain.NewLiveStream(o.newStreamID(), from.UserID, from.ConnID, normalizeTitle(c.Title, o.opts.MaxTitleLen), o.now())
	o.streams.Add(s)
	o.dirty = true
	o.send(from, core.EvLiveStarted, requestID, core.StreamStarted{StreamID: s.ID})
	return true
}

func normalizeTitle(title string, limit int) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > limit {
		title = strings.TrimSpace(string([]rune(title)[:limit]))
	}
	if title == "" {
		return defaultTitle
	}
	return title
}

func (o *Orchestrator) joinStream(from *app.SessionEntry, c core.LiveJoin) bool {
	s, ok := o.streams.Get(c.StreamID)
	if !ok {
		return o.drop(core.EvLiveJoin, metrics.ReasonUnknownID, "unknown stream")
	}
	if s.HostConnID == from.ConnID {
		return o.drop(core.EvLiveJoin, metrics.ReasonForbidden, "host joining own stream")
	}
	if !o.streams.AddViewer(s.ID, from.ConnID) {
		return o.drop(core.EvLiveJoin, metrics.ReasonForbidden, "already watching")
	}
	o.dirty = true
	o.sendToConn(s.HostConnID, core.EvViewerJoined, core.ViewerNotice{StreamID: s.ID, ViewerID: from.ConnID})
	return true
}

func (o *Orchestrator) requestLeave(from *app.SessionEntry, c core.LiveLeave) bool {
	if _, ok := o.streams.Get(c.StreamID); !ok {
		return o.drop(core.EvLiveLeave, metrics.ReasonUnknownID, "unknown stream")
	}
	if !o.leaveStream(c.StreamID, from.ConnID) {
		return o.drop(core.EvLiveLeave, metrics.ReasonForbidden, "not watching")
	}
	return true
}

func (o *Orchestrator) leaveStream(id domain.StreamID, viewer domain.ConnID) bool {
	s, ok := o.streams.Get(id)
	if !ok || !o.streams.RemoveViewer(id, viewer) {
		return false
	}
	o.dirty = true
	o.sendToConn(s.HostConnID, core.EvViewerLeft, core.ViewerNotice{StreamID: id, ViewerID: viewer})
	return true
}

func (o *Orchestrator) requestEnd(from *app.SessionEntry, c core.LiveEnd) bool {
	s, ok := o.streams.Get(c.StreamID)
	if !ok {
		return o.drop(core.EvLiveEnd, metrics.ReasonUnknownID, "unknown stream")
	}
	if s.HostUserID != from.UserID {
		return o.drop(core.EvLiveEnd, metrics.ReasonForbidden, "end from non-host")
	}
	o.endStream(s.ID)
	return true
}

// endStream notifies the viewers present at this instant.
func (o *Orchestrator) endStream(id domain.StreamID) {
	s, ok := o.streams.Remove(id)
	if !ok {
		return
	}
	o.dirty = true
	for v := range s.Viewers {
		o.sendToConn(v, core.EvStreamEnded, core.StreamRef{StreamID: id})
	}
}

// relayLiveSignal enforces the star: offers go host to viewer, answers go
// viewer to host, candidates go along either edge.
func (o *Orchestrator) relayLiveSignal(from *app.SessionEntry, c core.LiveSignalRelay) bool {
	ev := c.Event()
	s, ok := o.streams.Get(c.StreamID)
	if !ok {
		return o.drop(ev, metrics.ReasonUnknownID, "unknown stream")
	}
	isHost := s.HostConnID == from.ConnID

	var to domain.ConnID
	switch {
	case isHost && c.Kind != core.SignalAnswer:
		if !s.HasViewer(c.To) {
			return o.drop(ev, metrics.ReasonForbidden, "target is not a viewer")
		}
		to = c.To
	case !isHost && c.Kind != core.SignalOffer && s.HasViewer(from.ConnID):
		to = s.HostConnID
	default:
		return o.drop(ev, metrics.ReasonForbidden, "signal outside stream topology")
	}
	return o.sendToConn(to, ev, core.LiveSignal{StreamID: s.ID, From: from.ConnID, Payload: c.Payload})
}
