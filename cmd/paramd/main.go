// Command paramd serves the parameter tree of a simulated beam-position
// monitor.
//
// The daemon builds the instrument tree and exports it to remote clients.
// It restores and autosaves persistent parameters, advertises itself via
// mDNS and exposes Prometheus metrics.
//
// Usage:
//
//	paramd [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-name string          Instrument name (default: host name)
//	-listen string        Listen address (default ":7420")
//	-metrics string       Prometheus listen address (empty disables)
//	-psk string           Hex encoded pre-shared key
//	-tls-cert, -tls-key   TLS certificate and key files
//	-tls-ca string        CA file; requires client certificates when set
//	-rate-limit float     Requests per second per connection
//	-state string         Persistent state file (empty disables)
//	-advertise            Advertise via mDNS (default true)
//	-protocol-log string  Capture protocol messages to this file
//	-simulate             Generate synthetic beam positions (default true)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Serve with persisted settings and metrics
//	paramd -name bpm-07 -state /var/lib/paramd/bpm-07.yaml -metrics :9420
//
//	# Require authentication
//	paramd -psk 000102030405060708090a0b0c0d0e0f
//
//	# Start from a config file, overriding the log level
//	paramd -config /etc/paramd.yaml -log-level debug
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bpmctl/paramtree/pkg/discovery"
	"github.com/bpmctl/paramtree/pkg/dispatch"
	"github.com/bpmctl/paramtree/pkg/log"
	"github.com/bpmctl/paramtree/pkg/persistence"
	"github.com/bpmctl/paramtree/pkg/remote"
	"github.com/bpmctl/paramtree/pkg/transport"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/version"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "paramd: %v\n", err)
		os.Exit(2)
	}
	logger := setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("paramd failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) *slog.Logger {
	lvl, _ := parseLevel(level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
	slog.SetDefault(logger)
	return logger
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	logger.Info("starting paramd", "name", cfg.Name, "version", version.Current)

	var plog log.Logger
	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer func() {
			if n := fl.Dropped(); n > 0 {
				logger.Warn("protocol events dropped", "count", n)
			}
			fl.Close()
		}()
		plog = fl
		logger.Info("capturing protocol", "file", cfg.ProtocolLog)
	}

	disp := dispatch.New(dispatch.Config{MaxQueue: cfg.QueueSize}, logger)
	defer disp.Stop()

	t := tree.New(tree.WithEmitter(disp), tree.WithLogger(logger))
	inst, err := buildInstrument(t.Root(), cfg.Name)
	if err != nil {
		return err
	}
	logger.Debug("instrument tree built", "nodes", t.Len())

	if cfg.StateFile != "" {
		saver, watcher, err := startPersistence(ctx, cfg, inst.root, disp, logger)
		if err != nil {
			return err
		}
		defer saver.Stop()
		defer watcher.Stop()
	}

	server, err := startServer(ctx, cfg, inst.root, disp, plog, logger)
	if err != nil {
		return err
	}
	defer server.Stop()

	if cfg.Advertise {
		adv, err := advertise(ctx, cfg, inst.root, server.Addr(), logger)
		if err != nil {
			logger.Warn("mDNS advertising disabled", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics, logger)
		})
	}
	if cfg.Simulate {
		g.Go(func() error {
			return runSimulation(gctx, inst, cfg.SimulationPeriod, logger.With("component", "simulation"))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "sessions", server.SessionCount())
		return nil
	})
	return g.Wait()
}

// startPersistence restores saved values, then keeps the file in sync with
// the tree in both directions.
func startPersistence(ctx context.Context, cfg *Config, root tree.Node, disp *dispatch.Dispatcher, logger *slog.Logger) (*persistence.AutoSaver, *persistence.Watcher, error) {
	store := persistence.NewStore(cfg.StateFile)
	doc, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	if doc != nil {
		if err := persistence.Apply(root, doc, logger); err != nil {
			logger.Warn("some persistent values were not restored", "file", store.Path(), "error", err)
		} else {
			logger.Info("restored persistent values", "file", store.Path(), "entries", len(doc.Entries))
		}
	}

	saver := persistence.NewAutoSaver(root, disp, store, cfg.AutosaveDelay, logger)
	if err := saver.Start(ctx); err != nil {
		return nil, nil, err
	}
	if doc == nil {
		if err := saver.Flush(); err != nil {
			saver.Stop()
			return nil, nil, err
		}
	}

	watcher := persistence.NewWatcher(store, root, 0, logger)
	if err := watcher.Start(ctx); err != nil {
		saver.Stop()
		return nil, nil, err
	}
	return saver, watcher, nil
}

func startServer(ctx context.Context, cfg *Config, root tree.Node, disp *dispatch.Dispatcher, plog log.Logger, logger *slog.Logger) (*remote.Server, error) {
	psk, err := cfg.pskBytes()
	if err != nil {
		return nil, err
	}
	scfg := remote.ServerConfig{
		Address:        cfg.Listen,
		Name:           cfg.Name,
		PSK:            psk,
		RateLimit:      rate.Limit(cfg.RateLimit),
		Burst:          cfg.Burst,
		ProtocolLogger: plog,
	}
	if files := cfg.tlsConfig(); files != nil {
		scfg.TLS, err = transport.NewServerTLSConfig(files)
		if err != nil {
			return nil, err
		}
	}

	server := remote.NewServer(root, disp, scfg, logger)
	if err := server.Start(ctx); err != nil {
		return nil, err
	}
	return server, nil
}

func advertise(ctx context.Context, cfg *Config, root tree.Node, addr net.Addr, logger *slog.Logger) (*discovery.MDNSAdvertiser, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot advertise %s address", addr.Network())
	}
	path, err := root.Path()
	if err != nil {
		return nil, err
	}

	acfg := discovery.DefaultAdvertiserConfig()
	acfg.Interface = cfg.Interface
	adv := discovery.NewMDNSAdvertiser(acfg)
	info := &discovery.ServerInfo{
		Name:    cfg.Name,
		Version: version.Current,
		Root:    path.String(),
		Port:    uint16(tcp.Port),
		TLS:     cfg.TLS.Enabled(),
		PSK:     cfg.PSK != "",
	}
	if err := adv.Advertise(ctx, info); err != nil {
		return nil, err
	}
	logger.Info("advertising", "service", discovery.ServiceType, "instance", discovery.InstanceName(cfg.Name), "port", tcp.Port)
	return adv, nil
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
