package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(sess domain.Session, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(sess.ConnID)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(sess.ConnID)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(sess.ConnID)).Msg("ping failed")
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the disconnect
// cascade has completed and the socket is released.
func (ctl *SignalWSController) readPump(ctx context.Context, sess domain.Session, c *WsSignalConn) {
	logger := log.With().Str("module", "signal").Str("user", string(sess.UserID)).Str("conn", string(sess.ConnID)).Logger()
	defer func() {
		if err := ctl.Orch.Disconnect(context.WithoutCancel(ctx), sess.ConnID); err != nil {
			logger.Warn().Err(err).Msg("disconnect")
		}
		ctl.Limiter.Forget(sess.ConnID)
		c.Close()
		logger.Info().Msg("readPump closing")
	}()

	keepAlive(c.conn, ctl.opts.ReadLimit, ctl.opts.PongWait)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("readPump read error")
			}
			return
		}
		if !ctl.Limiter.Allow(sess.ConnID) {
			ctl.Metrics.Drop(metrics.ReasonRateLimited)
			logger.Debug().Msg("rate limited")
			continue
		}
		requestID, cmd, err := ctl.Decoder.Decode(data)
		if err != nil {
			ctl.Metrics.Drop(metrics.ReasonMalformed)
			logger.Warn().Err(err).Msg("bad frame")
			continue
		}
		err = ctl.Orch.Dispatch(ctx, core.Inbound{ConnID: sess.ConnID, RequestID: requestID, Command: cmd})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("dispatch")
			}
			return
		}
	}
}
