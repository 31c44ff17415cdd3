package orch

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("orchestrator stopped")

const (
	defaultInboxSize   = 1024
	defaultMaxTitleLen = 120
	defaultTitle       = "Live"
)

type Options struct {
	IceServers []webrtc.ICEServer
	// ValidateRelays checks call ICE candidates against the call record.
	// When false they are passed through to the named target.
	ValidateRelays bool
	MaxTitleLen    int
	InboxSize      int
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdInbound
	cmdQuery
)

func (k commandKind) String() string {
	switch k {
	case cmdConnect:
		return "connect"
	case cmdDisconnect:
		return "disconnect"
	case cmdInbound:
		return "inbound"
	}
	return "query"
}

type command struct {
	kind    commandKind
	session domain.Session
	conn    core.SignalConnection
	connID  domain.ConnID
	inbound core.Inbound
	query   func()
	done    chan struct{}
}

// Orchestrator is the dispatcher. Run owns the registries; every other
// method only queues work for it.
type Orchestrator struct {
	opts     Options
	presence *app.PresenceRegistry
	calls    *app.CallRegistry
	streams  *app.StreamRegistry
	policy   app.Policy
	metrics  *metrics.Metrics

	inbox   chan command
	stopped chan struct{}
	dirty   bool

	now         func() time.Time
	newCallID   func() domain.CallID
	newStreamID func() domain.StreamID
}

func New(opts Options, policy app.Policy, m *metrics.Metrics) *Orchestrator {
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.MaxTitleLen <= 0 {
		opts.MaxTitleLen = defaultMaxTitleLen
	}
	if policy == nil {
		policy = app.DropPolicy{}
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Orchestrator{
		opts:        opts,
		presence:    app.NewPresenceRegistry(),
		calls:       app.NewCallRegistry(),
		streams:     app.NewStreamRegistry(),
		policy:      policy,
		metrics:     m,
		inbox:       make(chan command, opts.InboxSize),
		stopped:     make(chan struct{}),
		now:         func() time.Time { return time.Now().UTC() },
		newCallID:   domain.NewCallID,
		newStreamID: domain.NewStreamID,
	}
}

// Run processes commands until ctx is done, then closes every connection.
func (o *Orchestrator) Run(ctx context.Context) {
	log.Info().Str("module", "orch").Int("inbox", cap(o.inbox)).Msg("dispatcher started")
	defer func() {
		close(o.stopped)
		for _, e := range o.presence.Conns() {
			e.Conn.Close()
		}
		log.Info().Str("module", "orch").Int("closed", o.presence.ConnCount()).Msg("dispatcher stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-o.inbox:
			o.exec(cmd)
		}
	}
}

func (o *Orchestrator) exec(cmd command) {
	defer func() {
		if r := recover(); r != nil {
			ev := cmd.kind.String()
			if cmd.kind == cmdInbound && cmd.inbound.Command != nil {
				ev = cmd.inbound.Command.Event()
			}
			log.Error().Str("module", "orch").Str("cmd", ev).Interface("panic", r).
				Bytes("stack", debug.Stack()).Msg("handler panic recovered")
			o.metrics.Event(ev, metrics.OutcomePanic)
		}
		o.flush()
		if cmd.done != nil {
			close(cmd.done)
		}
	}()

	switch cmd.kind {
	case cmdConnect:
		o.connect(cmd.session, cmd.conn)
	case cmdDisconnect:
		o.disconnect(cmd.connID)
	case cmdInbound:
		o.handle(cmd.inbound)
	case cmdQuery:
		cmd.query()
	}
}

// flush emits at most one directory update per command and refreshes gauges.
func (o *Orchestrator) flush() {
	if o.dirty {
		o.dirty = false
		o.broadcast(core.EvStreamsUpdated, core.StreamDirectory{Streams: o.streams.List()})
	}
	o.metrics.Connections.Set(float64(o.presence.ConnCount()))
	o.metrics.OnlineUsers.Set(float64(o.presence.UserCount()))
	o.metrics.ActiveCalls.Set(float64(o.calls.Len()))
	o.metrics.LiveStreams.Set(float64(o.streams.Len()))
	o.metrics.LiveViewers.Set(float64(o.streams.ViewerCount()))
}

func (o *Orchestrator) submit(ctx context.Context, cmd command) error {
	select {
	case o.inbox <- cmd:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) submitWait(ctx context.Context, cmd command) error {
	cmd.done = make(chan struct{})
	if err := o.submit(ctx, cmd); err != nil {
		return err
	}
	select {
	case <-cmd.done:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a session and returns once it is visible to every
// other component.
func (o *Orchestrator) Connect(ctx context.Context, s domain.Session, conn core.SignalConnection) error {
	return o.submitWait(ctx, command{kind: cmdConnect, session: s, conn: conn})
}

// Disconnect runs the cleanup cascade for a connection and returns once it
// has completed.
func (o *Orchestrator) Disconnect(ctx context.Context, c domain.ConnID) error {
	return o.submitWait(ctx, command{kind: cmdDisconnect, connID: c})
}

// Dispatch queues a client event. Events from one caller are processed in
// submission order.
func (o *Orchestrator) Dispatch(ctx context.Context, in core.Inbound) error {
	return o.submit(ctx, command{kind: cmdInbound, inbound: in})
}

func (o *Orchestrator) query(ctx context.Context, fn func()) error {
	return o.submitWait(ctx, command{kind: cmdQuery, query: fn})
}

func (o *Orchestrator) ListStreams(ctx context.Context) ([]domain.StreamInfo, error) {
	var out []domain.StreamInfo
	err := o.query(ctx, func() { out = o.streams.List() })
	return out, err
}

func (o *Orchestrator) OnlineUsers(ctx context.Context) ([]domain.UserID, error) {
	var out []domain.UserID
	err := o.query(ctx, func() { out = o.presence.Online() })
	return out, err
}

func (o *Orchestrator) IsOnline(ctx context.Context, u domain.UserID) (bool, error) {
	var online bool
	err := o.query(ctx, func() { online = o.presence.IsOnline(u) })
	return online, err
}

func (o *Orchestrator) IceServers() []webrtc.ICEServer { return o.opts.IceServers }

func (o *Orchestrator) connect(s domain.Session, conn core.SignalConnection) {
	o.presence.Add(s, conn)
	e, _ := o.presence.Conn(s.ConnID)
	o.send(e, core.EvSessionReady, "", core.SessionReady{
		UserID:       s.UserID,
		ConnectionID: s.ConnID,
		IceServers:   o.opts.IceServers,
	})
	o.broadcast(core.EvUserOnline, core.UserPresence{UserID: s.UserID})
}

// disconnect releases what the connection holds. Stream cleanup is per
// connection; calls are ended whenever the user is left without a session,
// and the offline broadcast follows only the current session going away.
func (o *Orchestrator) disconnect(c domain.ConnID) {
	e, wentOffline := o.presence.Remove(c)
	if e == nil {
		return
	}
	for _, id := range o.streams.WatchedBy(c) {
		o.leaveStream(id, c)
	}
	for _, id := range o.streams.HostedBy(c) {
		o.endStream(id)
	}
	if o.presence.IsOnline(e.UserID) {
		return
	}
	for _, call := range o.calls.OfUser(e.UserID) {
		o.forceEndCall(call, e.UserID)
	}
	if wentOffline {
		o.broadcast(core.EvUserOffline, core.UserPresence{UserID: e.UserID})
	}
}

func (o *Orchestrator) handle(in core.Inbound) {
	ev := "unknown"
	if in.Command != nil {
		ev = in.Command.Event()
	}
	from, ok := o.presence.Conn(in.ConnID)
	if !ok {
		o.drop(ev, metrics.ReasonUnknownID, "event from unregistered connection")
		return
	}

	var handled bool
	switch c := in.Command.(type) {
	case core.Ping:
		handled = o.send(from, core.EvPong, in.RequestID, nil)
	case core.WhoAmIRequest:
		handled = o.send(from, core.EvWhoAmI, in.RequestID, core.WhoAmI{UserID: from.UserID, ConnectionID: from.ConnID})
	case core.PresenceListRequest:
		handled = o.send(from, core.EvOnlineUsers, in.RequestID, core.OnlineUsers{UserIDs: o.presence.Online()})

	case core.TypingStart:
		handled = o.typing(from, core.EvTypingStart, c.ReceiverID)
	case core.TypingStop:
		handled = o.typing(from, core.EvTypingStop, c.ReceiverID)
	case core.MessageSend:
		handled = o.sendMessage(from, in.RequestID, c)
	case core.MessageRead:
		handled = o.markRead(from, c)

	case core.CallInitiate:
		handled = o.initiateCall(from, in.RequestID, c)
	case core.CallAnswer:
		handled = o.answerCall(from, c)
	case core.CallReject:
		handled = o.rejectCall(from, c)
	case core.CallEnd:
		handled = o.endCall(from, c)
	case core.CallCandidateRelay:
		handled = o.relayCallCandidate(from, c)

	case core.LiveStart:
		handled = o.startStream(from, in.RequestID, c)
	case core.LiveList:
		handled = o.send(from, core.EvLiveStreams, in.RequestID, core.StreamDirectory{Streams: o.streams.List()})
	case core.LiveJoin:
		handled = o.joinStream(from, c)
	case core.LiveLeave:
		handled = o.requestLeave(from, c)
	case core.LiveEnd:
		handled = o.requestEnd(from, c)
	case core.LiveSignalRelay:
		handled = o.relayLiveSignal(from, c)

	default:
		o.drop(ev, metrics.ReasonMalformed, "unsupported command")
		return
	}
	if handled {
		o.metrics.Event(ev, metrics.OutcomeHandled)
	} else {
		o.metrics.Event(ev, metrics.OutcomeDropped)
	}
}

// drop records a silent no-op and returns false for handler chaining.
func (o *Orchestrator) drop(ev, reason, msg string) bool {
	o.metrics.Drop(reason)
	log.Debug().Str("module", "orch").Str("event", ev).Str("reason", reason).Msg(msg)
	return false
}

func (o *Orchestrator) send(e *app.SessionEntry, typ, requestID string, data any) bool {
	frame, err := core.Encode(typ, requestID, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", typ).Msg("encode failed")
		return false
	}
	return o.deliver(e, frame)
}

func (o *Orchestrator) deliver(e *app.SessionEntry, frame core.Frame) bool {
	err := e.Conn.TrySend(frame)
	if err == nil {
		return true
	}
	if errors.Is(err, core.ErrBackpressure) {
		o.metrics.Drop(metrics.ReasonBackpressure)
		switch o.policy.OnBackPressure(e.ConnID) {
		case app.KickConnection:
			log.Warn().Str("module", "orch").Str("conn", string(e.ConnID)).Str("user", string(e.UserID)).
				Msg("slow client kicked")
			e.Conn.Close()
		case app.DropFrame, app.NoAction:
			log.Debug().Str("module", "orch").Str("conn", string(e.ConnID)).Msg("frame dropped on full queue")
		}
		return false
	}
	log.Debug().Err(err).Str("module", "orch").Str("conn", string(e.ConnID)).Msg("send failed")
	return false
}

// sendToUser targets the user's current session.
func (o *Orchestrator) sendToUser(u domain.UserID, typ string, data any) bool {
	e, ok := o.presence.Session(u)
	if !ok {
		return o.drop(typ, metrics.ReasonOffline, "recipient offline")
	}
	return o.send(e, typ, "", data)
}

func (o *Orchestrator) sendToConn(c domain.ConnID, typ string, data any) bool {
	e, ok := o.presence.Conn(c)
	if !ok {
		return o.drop(typ, metrics.ReasonOffline, "recipient connection gone")
	}
	return o.send(e, typ, "", data)
}

func (o *Orchestrator) broadcast(typ string, data any) {
	frame, err := core.Encode(typ, "", data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", typ).Msg("encode failed")
		return
	}
	for _, e := range o.presence.Conns() {
		o.deliver(e, frame)
	}
}
