package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bpmctl/paramtree/pkg/dispatch"
	"github.com/bpmctl/paramtree/pkg/log"
	"github.com/bpmctl/paramtree/pkg/transport"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/version"
	"github.com/bpmctl/paramtree/pkg/wire"
)

// Dispatcher is the part of dispatch.Dispatcher a Server needs.
type Dispatcher interface {
	Connect(cb dispatch.Callback) (tree.ClientID, error)
	Disconnect(id tree.ClientID)
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (default ":7420").
	Address string

	// TLS enables TLS 1.3 when set.
	TLS *tls.Config

	// Name is announced to clients in the hello response.
	Name string

	// PSK, when set, requires clients to authenticate after hello.
	PSK []byte

	// RateLimit bounds requests per second per connection. Zero disables
	// limiting.
	RateLimit rate.Limit

	// Burst is the limiter bucket size (default: 32).
	Burst int

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// ProtocolLogger captures decoded messages (optional).
	ProtocolLogger log.Logger
}

// Server exports a subtree to remote clients. Requests are resolved
// relative to the exported root through ordinary node handles; each
// connection is one dispatcher client.
type Server struct {
	root   tree.Node
	disp   Dispatcher
	config ServerConfig
	logger *slog.Logger
	plog   log.Logger

	transport *transport.Server

	mu       sync.Mutex
	sessions map[*transport.ServerConn]*session
}

// NewServer creates a server exporting root. Notifications are delivered
// through disp, which must be the emitter of root's tree.
func NewServer(root tree.Node, disp Dispatcher, config ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Burst == 0 {
		config.Burst = 32
	}
	s := &Server{
		root:     root,
		disp:     disp,
		config:   config,
		logger:   logger.With("component", "remote-server"),
		plog:     log.OrNoop(config.ProtocolLogger),
		sessions: make(map[*transport.ServerConn]*session),
	}
	s.transport = transport.NewServer(transport.ServerConfig{
		Address:        config.Address,
		TLS:            config.TLS,
		MaxMessageSize: config.MaxMessageSize,
		Logger:         config.ProtocolLogger,
		OnConnect:      s.onConnect,
		OnDisconnect:   s.onDisconnect,
		OnMessage:      s.onMessage,
		OnError: func(conn *transport.ServerConn, err error) {
			if conn != nil {
				s.logger.Debug("connection error", "conn_id", conn.ConnID(), "error", err)
				return
			}
			s.logger.Warn("transport error", "error", err)
		},
	})
	return s
}

// Start listens on the configured address.
func (s *Server) Start(ctx context.Context) error {
	if err := s.transport.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("serving tree", "addr", s.transport.Addr(), "root", s.root, "auth", len(s.config.PSK) > 0)
	return nil
}

// Serve accepts connections on listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	return s.transport.Serve(ctx, listener)
}

// Stop closes every session and the listener.
func (s *Server) Stop() error {
	return s.transport.Stop()
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	return s.transport.Addr()
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) onConnect(conn *transport.ServerConn) {
	sess := &session{
		server: s,
		conn:   conn,
		subs:   make(map[tree.Node]tree.Path),
	}
	if s.config.RateLimit > 0 {
		sess.limiter = rate.NewLimiter(s.config.RateLimit, s.config.Burst)
	}

	id, err := s.disp.Connect(sess.deliver)
	if err != nil {
		s.logger.Warn("rejecting connection", "conn_id", conn.ConnID(), "error", err)
		conn.Close()
		return
	}
	sess.id = id

	s.mu.Lock()
	s.sessions[conn] = sess
	s.mu.Unlock()
	sessionsActive.Inc()
	s.logger.Debug("session opened", "conn_id", conn.ConnID(), "remote", conn.RemoteAddr(), "client_id", id)
}

func (s *Server) onDisconnect(conn *transport.ServerConn) {
	s.mu.Lock()
	sess, ok := s.sessions[conn]
	delete(s.sessions, conn)
	s.mu.Unlock()
	if !ok {
		return
	}

	s.disp.Disconnect(sess.id)
	for node := range sess.takeSubscriptions() {
		_ = node.Unsubscribe(sess.id)
	}
	sessionsActive.Dec()
	s.logger.Debug("session closed", "conn_id", conn.ConnID(), "peer", sess.peerName())
}

func (s *Server) onMessage(conn *transport.ServerConn, data []byte) {
	s.mu.Lock()
	sess := s.sessions[conn]
	s.mu.Unlock()
	if sess == nil {
		return
	}
	sess.handleMessage(data)
}

// session is the server side of one connection.
type session struct {
	server  *Server
	conn    *transport.ServerConn
	id      tree.ClientID
	limiter *rate.Limiter

	mu        sync.Mutex
	peer      string
	greeted   bool
	authed    bool
	challenge []byte
	subs      map[tree.Node]tree.Path
}

func (sess *session) peerName() string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.peer
}

func (sess *session) takeSubscriptions() map[tree.Node]tree.Path {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	subs := sess.subs
	sess.subs = make(map[tree.Node]tree.Path)
	return subs
}

// deliver runs on the dispatcher worker of this session.
func (sess *session) deliver(n *tree.Notification) error {
	sess.mu.Lock()
	path, ok := sess.subs[n.Node]
	sess.mu.Unlock()
	if !ok {
		return nil
	}

	msg := &wire.Notification{
		Event:   uint8(n.Kind),
		Path:    path,
		Payload: wire.FromValue(n.Payload),
		Index:   n.Index,
		Time:    n.Time,
	}
	data, err := wire.EncodeNotification(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := sess.conn.Send(data); err != nil {
		return err
	}
	notificationsSent.Inc()
	sess.record(log.NotificationEvent(sess.conn.ConnID(), log.DirectionOut, msg))
	return nil
}

func (sess *session) record(e log.Event) {
	if sess.server.config.ProtocolLogger == nil {
		return
	}
	e.LocalRole = log.RoleServer
	e.RemoteAddr = sess.conn.RemoteAddr().String()
	e.Peer = sess.peerName()
	sess.server.plog.Log(e)
}

func (sess *session) handleMessage(data []byte) {
	start := time.Now()

	req, err := wire.DecodeRequest(data)
	if err != nil {
		sess.respond(&wire.Response{
			MessageID: peekMessageID(data),
			Status:    wire.StatusInvalidRequest,
			Error:     &wire.ErrorPayload{Message: err.Error()},
		}, "invalid", start)
		return
	}
	sess.record(log.RequestEvent(sess.conn.ConnID(), log.DirectionIn, req))

	resp := &wire.Response{MessageID: req.MessageID}
	payload, err := sess.execute(req)
	if err == nil && payload != nil {
		err = resp.SetPayload(payload)
	}
	if err != nil {
		resp.Status, resp.Error = statusFor(err)
	}
	sess.respond(resp, req.Operation.String(), start)

	if req.Operation == wire.OpAuthenticate && resp.Status == wire.StatusNotAuthorized {
		authFailures.Inc()
		sess.server.logger.Warn("authentication failed", "conn_id", sess.conn.ConnID(), "remote", sess.conn.RemoteAddr())
		sess.conn.Close()
	}
}

func (sess *session) respond(resp *wire.Response, op string, start time.Time) {
	data, err := wire.EncodeResponse(resp)
	if err != nil {
		sess.server.logger.Error("encode response", "conn_id", sess.conn.ConnID(), "error", err)
		return
	}
	if err := sess.conn.Send(data); err != nil {
		sess.server.logger.Debug("send response", "conn_id", sess.conn.ConnID(), "error", err)
		return
	}
	elapsed := time.Since(start)
	requestsHandled.WithLabelValues(op, resp.Status.String()).Inc()
	requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	sess.record(log.ResponseEvent(sess.conn.ConnID(), log.DirectionOut, resp, elapsed))
}

// peekMessageID recovers the message id of a request that failed to
// decode, or 0.
func peekMessageID(data []byte) uint32 {
	var head struct {
		MessageID uint32 `cbor:"1,keyasint"`
	}
	if err := wire.Unmarshal(data, &head); err != nil {
		return 0
	}
	return head.MessageID
}

func (sess *session) execute(req *wire.Request) (any, error) {
	switch req.Operation {
	case wire.OpHello:
		return sess.hello(req)
	case wire.OpAuthenticate:
		return sess.authenticate(req)
	}

	sess.mu.Lock()
	authed := sess.authed
	sess.mu.Unlock()
	if !authed {
		return nil, fmt.Errorf("%w: %s before handshake", ErrNotAuthorized, req.Operation)
	}
	if sess.limiter != nil && !sess.limiter.Allow() {
		return nil, ErrBusy
	}

	node, err := sess.server.root.NavigatePath(tree.Path(req.Path))
	if err != nil {
		return nil, err
	}

	switch req.Operation {
	case wire.OpGetName:
		return result(node.Name())
	case wire.OpGetNodes:
		return childNames(node)
	case wire.OpGetNodeCount:
		return result(node.ChildCount())
	case wire.OpIsLeaf:
		return result(node.IsLeaf())
	case wire.OpGetValueType:
		return valueType(node)
	case wire.OpGetValue:
		p := wire.GetValuePayload{Count: -1}
		if len(req.Payload) > 0 {
			if err := req.DecodePayload(&p); err != nil {
				return nil, invalid(err)
			}
		}
		v, err := node.GetRange(p.Pos, p.Count)
		if err != nil {
			return nil, err
		}
		return wire.FromValue(v), nil
	case wire.OpSetValue:
		var p wire.SetValuePayload
		if err := req.DecodePayload(&p); err != nil {
			return nil, invalid(err)
		}
		v, err := p.Value.Value()
		if err != nil {
			return nil, err
		}
		return nil, node.SetRange(p.Pos, v)
	case wire.OpExecute:
		return nil, node.Execute()
	case wire.OpGetSize:
		return result(node.Size())
	case wire.OpGetFlags:
		f, err := node.Flags()
		return result(uint16(f), err)
	case wire.OpGetDomainValues:
		d, err := node.Domain()
		if err != nil {
			return nil, err
		}
		return domainEntries(d), nil
	case wire.OpGetValidatorExpression:
		info, err := node.Info()
		return result(info.Constraint, err)
	case wire.OpSubscribe:
		return nil, sess.subscribe(node, req.Path)
	case wire.OpUnsubscribe:
		return nil, sess.unsubscribe(node)
	case wire.OpResize:
		var p wire.ResizePayload
		if err := req.DecodePayload(&p); err != nil {
			return nil, invalid(err)
		}
		return nil, node.Resize(p.Size)
	case wire.OpGetInfo:
		info, err := node.Info()
		if err != nil {
			return nil, err
		}
		return infoPayload(info), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, req.Operation)
}

func (sess *session) hello(req *wire.Request) (any, error) {
	var p wire.HelloPayload
	if err := req.DecodePayload(&p); err != nil {
		return nil, invalid(err)
	}
	if err := version.Check(p.Version); err != nil {
		return nil, err
	}

	resp := wire.HelloResponsePayload{Version: version.Current, Name: sess.server.config.Name}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.peer = p.Client
	sess.greeted = true
	if len(sess.server.config.PSK) == 0 {
		sess.authed = true
		return resp, nil
	}
	challenge, err := newChallenge()
	if err != nil {
		return nil, err
	}
	sess.challenge = challenge
	sess.authed = false
	resp.Challenge = challenge
	return resp, nil
}

func (sess *session) authenticate(req *wire.Request) (any, error) {
	var p wire.AuthenticatePayload
	if err := req.DecodePayload(&p); err != nil {
		return nil, invalid(err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.greeted || sess.challenge == nil {
		return nil, fmt.Errorf("%w: no challenge issued", ErrNotAuthorized)
	}
	challenge := sess.challenge
	sess.challenge = nil
	if !verifyMAC(sess.server.config.PSK, challenge, sess.peer, p.MAC) {
		return nil, fmt.Errorf("%w: MAC mismatch", ErrNotAuthorized)
	}
	sess.authed = true
	return nil, nil
}

func (sess *session) subscribe(node tree.Node, path []string) error {
	if err := node.Subscribe(sess.id); err != nil {
		return err
	}
	sess.mu.Lock()
	sess.subs[node] = tree.Path(path)
	sess.mu.Unlock()
	sess.record(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sess.conn.ConnID(),
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			NewState: "SUBSCRIBED",
			Reason:   tree.Path(path).String(),
		},
	})
	return nil
}

func (sess *session) unsubscribe(node tree.Node) error {
	sess.mu.Lock()
	path, ok := sess.subs[node]
	delete(sess.subs, node)
	sess.mu.Unlock()
	if err := node.Unsubscribe(sess.id); err != nil {
		return err
	}
	if ok {
		sess.record(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: sess.conn.ConnID(),
			Layer:        log.LayerService,
			Category:     log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntitySubscription,
				OldState: "SUBSCRIBED",
				NewState: "UNSUBSCRIBED",
				Reason:   path.String(),
			},
		})
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}

func result[T any](v T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func childNames(node tree.Node) ([]string, error) {
	children, err := node.Children()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(children))
	for _, c := range children {
		name, err := c.Name()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func valueType(node tree.Node) (any, error) {
	kind, err := node.Kind()
	if err != nil {
		return nil, err
	}
	array, err := node.IsArray()
	if err != nil {
		return nil, err
	}
	return wire.ValueTypePayload{Kind: uint8(kind), Array: array}, nil
}

func domainEntries(d *tree.EnumDomain) []wire.DomainEntry {
	if d == nil {
		return []wire.DomainEntry{}
	}
	entries := d.Entries()
	out := make([]wire.DomainEntry, len(entries))
	for i, e := range entries {
		out[i] = wire.DomainEntry{Name: e.Name, Value: e.Value}
	}
	return out
}

func infoPayload(info tree.Info) wire.InfoPayload {
	p := wire.InfoPayload{
		Name:        info.Name,
		NodeKind:    uint8(info.NodeKind),
		Kind:        uint8(info.Kind),
		Flags:       uint16(info.Flags),
		Size:        info.Size,
		Children:    info.Children,
		Constraint:  info.Constraint,
		Description: info.Description,
	}
	if info.Domain != nil {
		p.Domain = domainEntries(info.Domain)
	}
	return p
}
