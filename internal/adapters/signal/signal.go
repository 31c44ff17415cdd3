package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Dispatcher is the part of the orchestrator the transport drives.
type Dispatcher interface {
	Connect(ctx context.Context, s domain.Session, conn core.SignalConnection) error
	Disconnect(ctx context.Context, c domain.ConnID) error
	Dispatch(ctx context.Context, in core.Inbound) error
}

type Options struct {
	SendBuffer int
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

type SignalWSController struct {
	Orch    Dispatcher
	Decoder Decoder
	Limiter *ConnRateLimiter
	Metrics *metrics.Metrics
	opts    Options
}

func NewSignalWSController(d Dispatcher, dec Decoder, limiter *ConnRateLimiter, m *metrics.Metrics, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &SignalWSController{Orch: d, Decoder: dec, Limiter: limiter, Metrics: m, opts: opts}
}

// WsSignalConn queues frames for the write pump. Close may be called from
// any goroutine, any number of times.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an already authenticated request and registers the
// connection. Pumps start only after the session is visible.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, w http.ResponseWriter, r *http.Request, uid domain.UserID) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	sess := domain.Session{UserID: uid, ConnID: domain.NewConnID(), ConnectedAt: time.Now().UTC()}
	if err := ctl.Orch.Connect(ctx, sess, conn); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("connect rejected")
		closeWith(ws, websocket.CloseTryAgainLater, "shutting down", ctl.opts.WriteWait)
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("user", string(uid)).Str("conn", string(sess.ConnID)).
		Str("remote", r.RemoteAddr).Msg("new WS connection")

	go ctl.writePump(sess, conn)
	go ctl.readPump(ctx, sess, conn)
}
