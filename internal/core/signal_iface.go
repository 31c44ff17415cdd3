package core

import "errors"

var (
	// ErrBackpressure means the connection's send queue is full; the frame was not queued.
	ErrBackpressure = errors.New("send queue full")
	ErrClosed       = errors.New("connection closed")
)

// Frame is one encoded envelope.
type Frame []byte

// SignalConnection is the dispatcher's view of a client link.
// TrySend never blocks. Close is idempotent; the transport still runs the
// disconnect for a connection closed from the dispatcher side.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
