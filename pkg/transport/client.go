package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bpmctl/paramtree/pkg/log"
	"github.com/bpmctl/paramtree/pkg/wire"
)

// ErrConnectionClosed is returned when sending or receiving on a closed
// connection.
var ErrConnectionClosed = errors.New("connection closed")

// DefaultConnectTimeout bounds Dial when the context has no deadline.
const DefaultConnectTimeout = 10 * time.Second

// ClientConfig configures Dial.
type ClientConfig struct {
	// TLS enables TLS 1.3 when set.
	TLS *tls.Config

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// ConnectTimeout is the connection timeout (default: 10s).
	ConnectTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Dial connects to a paramtree server.
func Dial(ctx context.Context, address string, config ClientConfig) (*ClientConn, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	conn := raw
	var state *tls.ConnectionState
	if config.TLS != nil {
		tlsConn := tls.Client(raw, config.TLS)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		cs := tlsConn.ConnectionState()
		if err := VerifyConnection(cs); err != nil {
			tlsConn.Close()
			return nil, fmt.Errorf("connection verification failed: %w", err)
		}
		conn, state = tlsConn, &cs
	}

	connID := uuid.New().String()
	framer := NewFramer(conn, config.MaxMessageSize)
	framer.SetLogger(config.Logger, connID)

	return &ClientConn{
		conn:     conn,
		framer:   framer,
		tlsState: state,
		connID:   connID,
		closeCh:  make(chan struct{}),
	}, nil
}

// ClientConn is a connection from a client to a server.
type ClientConn struct {
	conn     net.Conn
	framer   *Framer
	tlsState *tls.ConnectionState
	connID   string
	closeCh  chan struct{}

	closeOnce sync.Once
	readMu    sync.Mutex
}

// ConnID returns the locally generated connection identifier.
func (c *ClientConn) ConnID() string {
	return c.connID
}

// TLSState returns the TLS connection state, or nil on plain TCP.
func (c *ClientConn) TLSState() *tls.ConnectionState {
	return c.tlsState
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send writes one message to the server. It is safe for concurrent use.
func (c *ClientConn) Send(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WriteFrame(data)
}

// Receive reads the next message. A positive timeout bounds the wait.
func (c *ClientConn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	data, err := c.framer.ReadFrame()
	if err != nil {
		select {
		case <-c.closeCh:
			return nil, ErrConnectionClosed
		default:
		}
	}
	return data, err
}

// Close closes the connection. Pending Receive calls return
// ErrConnectionClosed.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the connection is closed.
func (c *ClientConn) Done() <-chan struct{} {
	return c.closeCh
}

// SendPing sends a ping control message.
func (c *ClientConn) SendPing(seq uint32) error {
	return c.sendControl(wire.ControlPing, seq)
}

// SendClose asks the server to close the connection.
func (c *ClientConn) SendClose() error {
	return c.sendControl(wire.ControlClose, 0)
}

func (c *ClientConn) sendControl(t wire.ControlMessageType, seq uint32) error {
	data, err := wire.EncodeControlMessage(&wire.ControlMessage{Type: t, Sequence: seq})
	if err != nil {
		return err
	}
	return c.Send(data)
}
