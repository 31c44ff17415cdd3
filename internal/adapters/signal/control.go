package signal

import (
	"time"

	"github.com/gorilla/websocket"
)

// keepAlive arms the read side: frame size cap and a deadline pushed
// forward by every pong.
func keepAlive(ws *websocket.Conn, readLimit int64, pongWait time.Duration) {
	if readLimit > 0 {
		ws.SetReadLimit(readLimit)
	}
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func closeWith(ws *websocket.Conn, code int, reason string, wait time.Duration) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait))
}
