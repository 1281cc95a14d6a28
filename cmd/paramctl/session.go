package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/bpmctl/paramtree/pkg/discovery"
	"github.com/bpmctl/paramtree/pkg/dispatch"
	"github.com/bpmctl/paramtree/pkg/log"
	"github.com/bpmctl/paramtree/pkg/remote"
	"github.com/bpmctl/paramtree/pkg/transport"
	"github.com/bpmctl/paramtree/pkg/tree"
)

// mountName is where the remote tree appears in the local tree.
const mountName = "remote"

// session is a connection to one server. The exported tree is mounted
// into a local tree so every command works on ordinary node handles.
type session struct {
	client *remote.Client
	disp   *dispatch.Dispatcher
	tree   *tree.Tree
	mount  tree.Node
	plog   *log.FileLogger
	logger *slog.Logger
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// connect dials the server selected by the global flags.
func connect(ctx context.Context) (*session, error) {
	logger := newLogger()

	addr, secure, err := resolveAddress(ctx, logger)
	if err != nil {
		return nil, err
	}
	cfg, err := clientConfig(secure || useTLS)
	if err != nil {
		return nil, err
	}

	s := &session{logger: logger}
	if protocolLog != "" {
		s.plog, err = log.NewFileLogger(protocolLog)
		if err != nil {
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		cfg.ProtocolLogger = s.plog
	}

	s.client, err = remote.Dial(ctx, addr, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Debug("connected", "addr", addr, "server", s.client.ServerName())

	s.disp = dispatch.New(dispatch.Config{}, logger)
	s.tree = tree.New(tree.WithEmitter(s.disp), tree.WithLogger(logger))
	s.mount, err = tree.Mount(s.tree.Root(), mountName, remote.NewStructure(s.client))
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func resolveAddress(ctx context.Context, logger *slog.Logger) (string, bool, error) {
	if address != "" {
		return address, false, nil
	}
	if serviceName == "" {
		return fmt.Sprintf("localhost:%d", transport.DefaultPort), false, nil
	}
	svc, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{}).Find(ctx, serviceName)
	if err != nil {
		return "", false, err
	}
	logger.Debug("resolved service", "instance", svc.InstanceName, "addr", svc.Address(), "root", svc.Root)
	return svc.Address(), svc.TLS, nil
}

func clientConfig(secure bool) (remote.ClientConfig, error) {
	cfg := remote.ClientConfig{
		Name:    clientName,
		Timeout: timeout,
	}
	if pskHex != "" {
		key, err := hex.DecodeString(pskHex)
		if err != nil {
			return cfg, fmt.Errorf("psk: %w", err)
		}
		cfg.PSK = key
	}
	if secure {
		tlsConf, err := transport.NewClientTLSConfig(&transport.TLSConfig{
			CertFile:           tlsCert,
			KeyFile:            tlsKey,
			CAFile:             tlsCA,
			ServerName:         tlsServer,
			InsecureSkipVerify: insecure,
		})
		if err != nil {
			return cfg, err
		}
		cfg.TLS = tlsConf
	}
	return cfg, nil
}

// node resolves a path relative to the exported root.
func (s *session) node(path string) (tree.Node, error) {
	p, err := tree.ParsePath(path)
	if err != nil {
		return tree.Node{}, err
	}
	return s.mount.NavigatePath(p)
}

// relPath returns the path of n below the exported root.
func (s *session) relPath(n tree.Node) string {
	p, err := n.Path()
	if err != nil || len(p) == 0 {
		return "/"
	}
	return tree.Path(p[1:]).String()
}

func (s *session) Close() {
	if s.disp != nil {
		s.disp.Stop()
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.plog != nil {
		s.plog.Close()
	}
}

// withSession runs fn on a fresh connection.
func withSession(ctx context.Context, fn func(*session) error) error {
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
