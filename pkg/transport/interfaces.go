package transport

import (
	"crypto/tls"
	"net"
	"time"
)

// Conn is what the remote layer sees of either end of a connection.
type Conn interface {
	ConnID() string
	RemoteAddr() net.Addr

	// TLSState is nil for plain TCP.
	TLSState() *tls.ConnectionState

	Send(data []byte) error
	Done() <-chan struct{}
	Close() error
}

// ClientConnection adds the calls only the dialing side makes.
type ClientConnection interface {
	Conn

	Receive(timeout time.Duration) ([]byte, error)
	SendPing(seq uint32) error
	SendClose() error
}

// FrameReadWriter reads and writes whole frames.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}

var (
	_ Conn             = (*ServerConn)(nil)
	_ ClientConnection = (*ClientConn)(nil)
	_ FrameReadWriter  = (*Framer)(nil)
)
