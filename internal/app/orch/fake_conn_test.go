package orch

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/stretchr/testify/require"
)

type received struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data"`
}

type fakeConn struct {
	mu     sync.Mutex
	frames []received
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	var r received
	if err := json.Unmarshal(f, &r); err != nil {
		return err
	}
	c.frames = append(c.frames, r)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) count(typ string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f.Type == typ {
			n++
		}
	}
	return n
}

// last decodes the most recent frame of typ into v.
func (c *fakeConn) last(t *testing.T, typ string, v any) received {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Type == typ {
			if v != nil {
				require.NoError(t, json.Unmarshal(c.frames[i].Data, v))
			}
			return c.frames[i]
		}
	}
	t.Fatalf("no %q frame", typ)
	return received{}
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type peer struct {
	user domain.UserID
	id   domain.ConnID
	conn *fakeConn
}

type harness struct {
	t     *testing.T
	o     *Orchestrator
	clock time.Time
	seq   int
}

func newHarness(t *testing.T, opts Options) *harness {
	h := &harness{t: t, clock: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	h.o = New(opts, nil, metrics.Nop())
	h.o.now = func() time.Time {
		h.clock = h.clock.Add(time.Second)
		return h.clock
	}
	h.o.newCallID = func() domain.CallID {
		h.seq++
		return domain.CallID(fmt.Sprintf("call-%d", h.seq))
	}
	h.o.newStreamID = func() domain.StreamID {
		h.seq++
		return domain.StreamID(fmt.Sprintf("stream-%d", h.seq))
	}
	return h
}

func (h *harness) connect(user domain.UserID) *peer {
	h.seq++
	p := &peer{user: user, id: domain.ConnID(fmt.Sprintf("conn-%d", h.seq)), conn: &fakeConn{}}
	h.o.exec(command{
		kind:    cmdConnect,
		session: domain.Session{UserID: user, ConnID: p.id, ConnectedAt: h.clock},
		conn:    p.conn,
	})
	return p
}

func (h *harness) disconnect(p *peer) {
	h.o.exec(command{kind: cmdDisconnect, connID: p.id})
}

func (h *harness) send(p *peer, cmd core.Command) {
	h.sendReq(p, "", cmd)
}

func (h *harness) sendReq(p *peer, requestID string, cmd core.Command) {
	h.o.exec(command{kind: cmdInbound, inbound: core.Inbound{ConnID: p.id, RequestID: requestID, Command: cmd}})
}

func resetAll(peers ...*peer) {
	for _, p := range peers {
		p.conn.reset()
	}
}
