package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bpmctl/paramtree/pkg/log"
	"github.com/bpmctl/paramtree/pkg/wire"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (e.g., ":7420" or "127.0.0.1:0").
	Address string

	// TLS enables TLS 1.3 on accepted connections when set.
	TLS *tls.Config

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called after a connection's read loop ends.
	OnDisconnect func(conn *ServerConn)

	// OnMessage is called from the connection's read loop for every
	// non-control message, in arrival order.
	OnMessage func(conn *ServerConn, msg []byte)

	// OnError is called when an error occurs. conn is nil for listener
	// and handshake errors.
	OnError func(conn *ServerConn, err error)
}

// Server accepts paramtree connections.
type Server struct {
	config   ServerConfig
	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a server. It does not listen until Start.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}
}

// Start listens on the configured address and begins accepting
// connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener. It returns immediately; the
// accept loop runs until Stop or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.listener = listener

	s.wg.Add(2)
	go s.acceptLoop()
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		s.listener.Close()
	}()
	return nil
}

// Stop closes the listener and every connection, then waits for the
// connection handlers to return.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(nil, fmt.Errorf("accept error: %w", err))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) reportError(conn *ServerConn, err error) {
	if s.config.OnError != nil {
		s.config.OnError(conn, err)
	}
}

func (s *Server) handleConnection(raw net.Conn) {
	defer s.wg.Done()

	conn := raw
	var state *tls.ConnectionState
	if s.config.TLS != nil {
		tlsConn := tls.Server(raw, s.config.TLS)
		if err := tlsConn.HandshakeContext(s.ctx); err != nil {
			raw.Close()
			s.reportError(nil, fmt.Errorf("TLS handshake failed: %w", err))
			return
		}
		cs := tlsConn.ConnectionState()
		if err := VerifyConnection(cs); err != nil {
			tlsConn.Close()
			s.reportError(nil, err)
			return
		}
		conn, state = tlsConn, &cs
	}

	connID := uuid.New().String()
	framer := NewFramer(conn, s.config.MaxMessageSize)
	framer.SetLogger(s.config.Logger, connID)

	sconn := &ServerConn{
		conn:     conn,
		framer:   framer,
		tlsState: state,
		server:   s,
		closeCh:  make(chan struct{}),
		connID:   connID,
	}

	s.connsMu.Lock()
	if !s.running.Load() {
		s.connsMu.Unlock()
		conn.Close()
		return
	}
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	sconn.logState("", "CONNECTED")
	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()
	sconn.Close()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	sconn.logState("CONNECTED", "DISCONNECTED")
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

// ServerConn is one accepted connection.
type ServerConn struct {
	conn      net.Conn
	framer    *Framer
	tlsState  *tls.ConnectionState
	server    *Server
	closeCh   chan struct{}
	closeOnce sync.Once
	connID    string
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// TLSState returns the TLS connection state, or nil on a plain TCP
// connection.
func (c *ServerConn) TLSState() *tls.ConnectionState {
	return c.tlsState
}

// Send writes one message to the client. It is safe for concurrent use.
func (c *ServerConn) Send(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WriteFrame(data)
}

// Close closes the connection. The read loop ends and OnDisconnect
// fires.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the connection is closed.
func (c *ServerConn) Done() <-chan struct{} {
	return c.closeCh
}

func (c *ServerConn) readLoop() {
	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				if c.server.running.Load() && !isClosedErr(err) {
					c.server.reportError(c, err)
				}
			}
			return
		}

		// Control messages and requests are both integer-keyed maps, so
		// the type key decides.
		if typ, err := wire.PeekMessageType(data); err == nil && typ == wire.MessageTypeControl {
			if msg, err := wire.DecodeControlMessage(data); err == nil {
				if !c.handleControlMessage(msg) {
					return
				}
				continue
			}
		}

		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, data)
		}
	}
}

// handleControlMessage answers pings and closes. It reports false when
// the connection should end.
func (c *ServerConn) handleControlMessage(msg *wire.ControlMessage) bool {
	c.logControl(msg, log.DirectionIn)

	switch msg.Type {
	case wire.ControlPing:
		pong := &wire.ControlMessage{Type: wire.ControlPong, Sequence: msg.Sequence}
		if data, err := wire.EncodeControlMessage(pong); err == nil {
			c.Send(data)
			c.logControl(pong, log.DirectionOut)
		}
	case wire.ControlClose:
		ack := &wire.ControlMessage{Type: wire.ControlClose}
		if data, err := wire.EncodeControlMessage(ack); err == nil {
			c.Send(data)
			c.logControl(ack, log.DirectionOut)
		}
		return false
	}
	return true
}

func (c *ServerConn) logControl(msg *wire.ControlMessage, dir log.Direction) {
	logger := c.server.config.Logger
	if logger == nil {
		return
	}
	typ, ok := controlLogType(msg.Type)
	if !ok {
		return
	}
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		RemoteAddr:   c.RemoteAddr().String(),
		ControlMsg:   &log.ControlMsgEvent{Type: typ, Sequence: msg.Sequence},
	})
}

func (c *ServerConn) logState(oldState, newState string) {
	logger := c.server.config.Logger
	if logger == nil {
		return
	}
	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   c.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func controlLogType(t wire.ControlMessageType) (log.ControlMsgType, bool) {
	switch t {
	case wire.ControlPing:
		return log.ControlMsgPing, true
	case wire.ControlPong:
		return log.ControlMsgPong, true
	case wire.ControlClose:
		return log.ControlMsgClose, true
	}
	return 0, false
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, ErrFrameTruncated) || errors.Is(err, io.EOF)
}
