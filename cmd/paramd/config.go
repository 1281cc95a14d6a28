package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bpmctl/paramtree/pkg/discovery"
	"github.com/bpmctl/paramtree/pkg/transport"
)

// Config holds the daemon configuration. Values from the config file are
// overridden by flags given on the command line.
type Config struct {
	ConfigFile string `yaml:"-"`

	Name     string `yaml:"name"`
	Listen   string `yaml:"listen"`
	Metrics  string `yaml:"metrics"`
	LogLevel string `yaml:"log_level"`

	// PSK is the hex encoded pre-shared key. Empty disables
	// authentication.
	PSK string `yaml:"psk"`

	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	QueueSize int     `yaml:"queue_size"`

	TLS TLSFiles `yaml:"tls"`

	StateFile     string        `yaml:"state_file"`
	AutosaveDelay time.Duration `yaml:"autosave_delay"`

	Advertise bool   `yaml:"advertise"`
	Interface string `yaml:"interface"`

	ProtocolLog string `yaml:"protocol_log"`

	Simulate         bool          `yaml:"simulate"`
	SimulationPeriod time.Duration `yaml:"simulation_period"`
}

// TLSFiles names the PEM files of the listener.
type TLSFiles struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
	CA   string `yaml:"ca"`
}

// Enabled reports whether a certificate was configured.
func (f TLSFiles) Enabled() bool {
	return f.Cert != "" || f.Key != ""
}

func defaultConfig() *Config {
	return &Config{
		Listen:           fmt.Sprintf(":%d", transport.DefaultPort),
		LogLevel:         "info",
		Burst:            32,
		AutosaveDelay:    time.Second,
		Advertise:        true,
		Simulate:         true,
		SimulationPeriod: 100 * time.Millisecond,
	}
}

func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("paramd", flag.ContinueOnError)
	fs.StringVar(&cfg.ConfigFile, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Instrument name (default: host name)")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "Listen address")
	fs.StringVar(&cfg.Metrics, "metrics", cfg.Metrics, "Prometheus listen address (empty disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.PSK, "psk", cfg.PSK, "Hex encoded pre-shared key")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Requests per second per connection (0 disables)")
	fs.IntVar(&cfg.Burst, "burst", cfg.Burst, "Rate limiter burst")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Per-client notification queue limit")
	fs.StringVar(&cfg.TLS.Cert, "tls-cert", cfg.TLS.Cert, "TLS certificate file")
	fs.StringVar(&cfg.TLS.Key, "tls-key", cfg.TLS.Key, "TLS key file")
	fs.StringVar(&cfg.TLS.CA, "tls-ca", cfg.TLS.CA, "CA file for client certificates")
	fs.StringVar(&cfg.StateFile, "state", cfg.StateFile, "Persistent state file (empty disables)")
	fs.DurationVar(&cfg.AutosaveDelay, "autosave-delay", cfg.AutosaveDelay, "Quiet time before saving changes")
	fs.BoolVar(&cfg.Advertise, "advertise", cfg.Advertise, "Advertise via mDNS")
	fs.StringVar(&cfg.Interface, "interface", cfg.Interface, "Network interface for mDNS (default: all)")
	fs.StringVar(&cfg.ProtocolLog, "protocol-log", cfg.ProtocolLog, "Capture protocol messages to this file")
	fs.BoolVar(&cfg.Simulate, "simulate", cfg.Simulate, "Generate synthetic beam positions")
	fs.DurationVar(&cfg.SimulationPeriod, "simulation-period", cfg.SimulationPeriod, "Simulation update period")
	return fs
}

// parseConfig parses args, then merges the config file below the flags
// that were given explicitly.
func parseConfig(args []string) (*Config, error) {
	cfg := defaultConfig()
	fs := newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		explicit := make(map[string]string)
		fs.Visit(func(f *flag.Flag) {
			explicit[f.Name] = f.Value.String()
		})
		if err := loadConfigFile(cfg.ConfigFile, cfg); err != nil {
			return nil, err
		}
		for name, val := range explicit {
			if err := fs.Set(name, val); err != nil {
				return nil, fmt.Errorf("flag -%s: %w", name, err)
			}
		}
	}

	applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "bpm"
		}
		cfg.Name = discovery.InstanceName(host)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 32
	}
	if cfg.SimulationPeriod <= 0 {
		cfg.SimulationPeriod = 100 * time.Millisecond
	}
}

func validateConfig(cfg *Config) error {
	if err := discovery.ValidateInstanceName(cfg.Name); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if _, err := cfg.pskBytes(); err != nil {
		return err
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", cfg.RateLimit)
	}
	if cfg.TLS.Enabled() && (cfg.TLS.Cert == "" || cfg.TLS.Key == "") {
		return errors.New("TLS needs both a certificate and a key")
	}
	return nil
}

func (c *Config) pskBytes() ([]byte, error) {
	if c.PSK == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.PSK)
	if err != nil {
		return nil, fmt.Errorf("psk: %w", err)
	}
	if len(key) < 16 {
		return nil, fmt.Errorf("psk must be at least 16 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *Config) tlsConfig() *transport.TLSConfig {
	if !c.TLS.Enabled() {
		return nil
	}
	return &transport.TLSConfig{
		CertFile: c.TLS.Cert,
		KeyFile:  c.TLS.Key,
		CAFile:   c.TLS.CA,
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
