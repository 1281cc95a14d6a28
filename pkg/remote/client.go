package remote

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bpmctl/paramtree/pkg/log"
	"github.com/bpmctl/paramtree/pkg/transport"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
	"github.com/bpmctl/paramtree/pkg/version"
	"github.com/bpmctl/paramtree/pkg/wire"
)

// DefaultTimeout bounds a request when the caller's context has no
// deadline.
const DefaultTimeout = 5 * time.Second

// ClientConfig configures Dial.
type ClientConfig struct {
	// Name is announced to the server in the hello request.
	Name string

	// PSK answers the server's challenge when it requires authentication.
	PSK []byte

	// Timeout bounds each request (default: 5s).
	Timeout time.Duration

	// TLS enables TLS 1.3 when set.
	TLS *tls.Config

	// KeepAlive tunes the ping/pong monitor. Zero fields take defaults.
	KeepAlive transport.KeepAliveConfig

	// DisableKeepAlive turns the ping/pong monitor off.
	DisableKeepAlive bool

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// ProtocolLogger captures decoded messages (optional).
	ProtocolLogger log.Logger
}

// Client issues requests to a remote tree server. Calls are safe for
// concurrent use; a failed or timed out call is never retried.
type Client struct {
	conn   transport.ClientConnection
	config ClientConfig
	logger *slog.Logger
	plog   log.Logger

	keepAlive *transport.KeepAlive
	nextID    atomic.Uint32

	mu       sync.Mutex
	pending  map[uint32]chan *wire.Response
	onNotify func(*wire.Notification)

	serverName string

	closeOnce sync.Once
	done      chan struct{}
	cause     error
}

// Dial connects to address and completes the hello and, if the server
// asks for it, the authentication exchange.
func Dial(ctx context.Context, address string, config ClientConfig, logger *slog.Logger) (*Client, error) {
	conn, err := transport.Dial(ctx, address, transport.ClientConfig{
		TLS:            config.TLS,
		MaxMessageSize: config.MaxMessageSize,
		Logger:         config.ProtocolLogger,
	})
	if err != nil {
		return nil, tree.RemoteError("dial", err)
	}

	c := NewClient(conn, config, logger)
	if err := c.handshake(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.logger.Debug("connected", "addr", address, "server", c.serverName)
	return c, nil
}

// NewClient wraps an established connection and starts its read loop.
// The caller is responsible for the handshake; Dial does both.
func NewClient(conn transport.ClientConnection, config ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	c := &Client{
		conn:    conn,
		config:  config,
		logger:  logger.With("component", "remote-client", "conn_id", conn.ConnID()),
		plog:    log.OrNoop(config.ProtocolLogger),
		pending: make(map[uint32]chan *wire.Response),
		done:    make(chan struct{}),
	}

	go c.readLoop()

	if !config.DisableKeepAlive {
		c.keepAlive = transport.NewKeepAlive(config.KeepAlive, conn.SendPing, func() {
			c.logger.Warn("server stopped answering pings")
			c.shutdown(tree.RemoteError("keep-alive", ErrTimeout))
		})
		c.keepAlive.Start(context.Background())
	}
	return c
}

// ServerName returns the name the server announced.
func (c *Client) ServerName() string {
	return c.serverName
}

// SetNotificationHandler installs fn for pushed notifications. fn runs on
// the read loop and must not issue requests on c synchronously.
func (c *Client) SetNotificationHandler(fn func(*wire.Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotify = fn
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the client closed, or nil while it is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.cause
	default:
		return nil
	}
}

// Close says goodbye to the server and closes the connection.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	_ = c.conn.SendClose()
	c.shutdown(ErrClosed)
	return nil
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.cause = cause
		close(c.done)
		if c.keepAlive != nil {
			c.keepAlive.Stop()
		}
		c.conn.Close()
	})
}

func (c *Client) record(e log.Event) {
	if c.config.ProtocolLogger == nil {
		return
	}
	e.LocalRole = log.RoleClient
	e.RemoteAddr = c.conn.RemoteAddr().String()
	e.Peer = c.serverName
	c.plog.Log(e)
}

func (c *Client) readLoop() {
	for {
		data, err := c.conn.Receive(0)
		if err != nil {
			c.shutdown(tree.RemoteError("receive", err))
			return
		}

		typ, err := wire.PeekMessageType(data)
		if err != nil {
			c.logger.Debug("dropping undecodable message", "error", err)
			continue
		}
		switch typ {
		case wire.MessageTypeResponse:
			resp, err := wire.DecodeResponse(data)
			if err != nil {
				c.logger.Debug("dropping bad response", "error", err)
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[resp.MessageID]
			delete(c.pending, resp.MessageID)
			c.mu.Unlock()
			if ok {
				ch <- resp
			}
		case wire.MessageTypeNotification:
			n, err := wire.DecodeNotification(data)
			if err != nil {
				c.logger.Debug("dropping bad notification", "error", err)
				continue
			}
			c.record(log.NotificationEvent(c.conn.ConnID(), log.DirectionIn, n))
			c.mu.Lock()
			fn := c.onNotify
			c.mu.Unlock()
			if fn != nil {
				fn(n)
			}
		case wire.MessageTypeControl:
			msg, err := wire.DecodeControlMessage(data)
			if err != nil {
				continue
			}
			switch msg.Type {
			case wire.ControlPong:
				if c.keepAlive != nil {
					c.keepAlive.PongReceived(msg.Sequence)
				}
			case wire.ControlClose:
				c.shutdown(tree.RemoteError("receive", transport.ErrConnectionClosed))
				return
			}
		}
	}
}

func (c *Client) newID() uint32 {
	for {
		if id := c.nextID.Add(1); id != wire.NotificationMessageID {
			return id
		}
	}
}

// call sends one request and waits for its response. A nil payload sends
// no payload; a nil out ignores the response payload.
func (c *Client) call(ctx context.Context, op wire.Operation, path tree.Path, payload, out any) error {
	select {
	case <-c.done:
		return tree.RemoteError(op.String(), c.cause)
	default:
	}

	req := &wire.Request{MessageID: c.newID(), Operation: op, Path: path}
	if payload != nil {
		if err := req.SetPayload(payload); err != nil {
			return fmt.Errorf("encode %s payload: %w", op, err)
		}
	}
	data, err := wire.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	ch := make(chan *wire.Response, 1)
	c.mu.Lock()
	c.pending[req.MessageID] = ch
	c.mu.Unlock()
	forget := func() {
		c.mu.Lock()
		delete(c.pending, req.MessageID)
		c.mu.Unlock()
	}

	start := time.Now()
	if err := c.conn.Send(data); err != nil {
		forget()
		return tree.RemoteError(op.String(), err)
	}
	c.record(log.RequestEvent(c.conn.ConnID(), log.DirectionOut, req))

	var resp *wire.Response
	select {
	case resp = <-ch:
	case <-ctx.Done():
		forget()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return tree.RemoteError(op.String(), ErrTimeout)
		}
		return tree.RemoteError(op.String(), ctx.Err())
	case <-c.done:
		forget()
		return tree.RemoteError(op.String(), c.cause)
	}
	c.record(log.ResponseEvent(c.conn.ConnID(), log.DirectionIn, resp, time.Since(start)))

	if !resp.IsSuccess() {
		return errorFor(resp)
	}
	if out != nil {
		if err := resp.DecodePayload(out); err != nil {
			return tree.RemoteError(op.String(), err)
		}
	}
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	var hello wire.HelloResponsePayload
	err := c.call(ctx, wire.OpHello, nil, wire.HelloPayload{Version: version.Current, Client: c.config.Name}, &hello)
	if err != nil {
		return err
	}
	if err := version.Check(hello.Version); err != nil {
		return err
	}
	c.serverName = hello.Name

	if len(hello.Challenge) == 0 {
		return nil
	}
	if len(c.config.PSK) == 0 {
		return fmt.Errorf("%w: server requires a pre-shared key", ErrNotAuthorized)
	}
	mac, err := computeMAC(c.config.PSK, hello.Challenge, c.config.Name)
	if err != nil {
		return err
	}
	return c.call(ctx, wire.OpAuthenticate, nil, wire.AuthenticatePayload{MAC: mac}, nil)
}

// Name returns the name of the node at path.
func (c *Client) Name(ctx context.Context, path tree.Path) (string, error) {
	var name string
	err := c.call(ctx, wire.OpGetName, path, nil, &name)
	return name, err
}

// Nodes returns the visible child names of the node at path.
func (c *Client) Nodes(ctx context.Context, path tree.Path) ([]string, error) {
	var names []string
	err := c.call(ctx, wire.OpGetNodes, path, nil, &names)
	return names, err
}

// NodeCount returns the number of visible children.
func (c *Client) NodeCount(ctx context.Context, path tree.Path) (int, error) {
	var n int
	err := c.call(ctx, wire.OpGetNodeCount, path, nil, &n)
	return n, err
}

// IsLeaf reports whether the node has no children at all.
func (c *Client) IsLeaf(ctx context.Context, path tree.Path) (bool, error) {
	var leaf bool
	err := c.call(ctx, wire.OpIsLeaf, path, nil, &leaf)
	return leaf, err
}

// ValueType returns the element kind and whether the node is an array.
func (c *Client) ValueType(ctx context.Context, path tree.Path) (value.Kind, bool, error) {
	var p wire.ValueTypePayload
	if err := c.call(ctx, wire.OpGetValueType, path, nil, &p); err != nil {
		return 0, false, err
	}
	kind, err := kindOf(p.Kind)
	if err != nil {
		return 0, false, tree.RemoteError(wire.OpGetValueType.String(), err)
	}
	return kind, p.Array, nil
}

// GetValue reads count elements at pos. count < 0 reads to the end.
func (c *Client) GetValue(ctx context.Context, path tree.Path, pos, count int) (value.Value, error) {
	var tv wire.TypedValue
	if err := c.call(ctx, wire.OpGetValue, path, wire.GetValuePayload{Pos: pos, Count: count}, &tv); err != nil {
		return value.Value{}, err
	}
	v, err := tv.Value()
	if err != nil {
		return value.Value{}, tree.RemoteError(wire.OpGetValue.String(), err)
	}
	return v, nil
}

// SetValue writes v starting at pos.
func (c *Client) SetValue(ctx context.Context, path tree.Path, pos int, v value.Value) error {
	return c.call(ctx, wire.OpSetValue, path, wire.SetValuePayload{Pos: pos, Value: wire.FromValue(v)}, nil)
}

// Execute runs the command node at path.
func (c *Client) Execute(ctx context.Context, path tree.Path) error {
	return c.call(ctx, wire.OpExecute, path, nil, nil)
}

// Size returns the element count of the node at path.
func (c *Client) Size(ctx context.Context, path tree.Path) (int, error) {
	var n int
	err := c.call(ctx, wire.OpGetSize, path, nil, &n)
	return n, err
}

// Flags returns the capability flags of the node at path.
func (c *Client) Flags(ctx context.Context, path tree.Path) (tree.Flags, error) {
	var f uint16
	err := c.call(ctx, wire.OpGetFlags, path, nil, &f)
	return tree.Flags(f), err
}

// Domain returns the enum domain of the node at path, or nil.
func (c *Client) Domain(ctx context.Context, path tree.Path) (*tree.EnumDomain, error) {
	var entries []wire.DomainEntry
	if err := c.call(ctx, wire.OpGetDomainValues, path, nil, &entries); err != nil {
		return nil, err
	}
	return domainFrom(entries)
}

// ValidatorExpression returns the textual constraint of the node at path.
func (c *Client) ValidatorExpression(ctx context.Context, path tree.Path) (string, error) {
	var expr string
	err := c.call(ctx, wire.OpGetValidatorExpression, path, nil, &expr)
	return expr, err
}

// Subscribe asks the server to push notifications for the node at path.
func (c *Client) Subscribe(ctx context.Context, path tree.Path) error {
	return c.call(ctx, wire.OpSubscribe, path, nil, nil)
}

// Unsubscribe stops notifications for the node at path.
func (c *Client) Unsubscribe(ctx context.Context, path tree.Path) error {
	return c.call(ctx, wire.OpUnsubscribe, path, nil, nil)
}

// Resize sets the length of the array node at path.
func (c *Client) Resize(ctx context.Context, path tree.Path, size int) error {
	return c.call(ctx, wire.OpResize, path, wire.ResizePayload{Size: size}, nil)
}

// Info returns the metadata of the node at path.
func (c *Client) Info(ctx context.Context, path tree.Path) (tree.Info, error) {
	var p wire.InfoPayload
	if err := c.call(ctx, wire.OpGetInfo, path, nil, &p); err != nil {
		return tree.Info{}, err
	}
	kind, err := kindOf(p.Kind)
	if err != nil {
		return tree.Info{}, tree.RemoteError(wire.OpGetInfo.String(), err)
	}
	domain, err := domainFrom(p.Domain)
	if err != nil {
		return tree.Info{}, err
	}
	return tree.Info{
		Name:        p.Name,
		NodeKind:    tree.NodeKind(p.NodeKind),
		Kind:        kind,
		Flags:       tree.Flags(p.Flags),
		Size:        p.Size,
		Children:    p.Children,
		Domain:      domain,
		Constraint:  p.Constraint,
		Description: p.Description,
	}, nil
}

func domainFrom(entries []wire.DomainEntry) (*tree.EnumDomain, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]tree.EnumEntry, len(entries))
	for i, e := range entries {
		out[i] = tree.EnumEntry{Name: e.Name, Value: e.Value}
	}
	d, err := tree.NewEnumDomain(out...)
	if err != nil {
		return nil, tree.RemoteError("domain", err)
	}
	return d, nil
}
