package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/bpmctl/paramtree/pkg/version"
)

// DefaultPort is the default paramtree port.
const DefaultPort = 7420

// TLSConfig names the PEM files used to secure a listener or a dial.
// Leaving CertFile and CAFile empty on a client still enables TLS with
// the system roots.
type TLSConfig struct {
	// CertFile and KeyFile hold this endpoint's certificate.
	CertFile string
	KeyFile  string

	// CAFile holds the CA certificates trusted for the peer. On a server
	// a non-empty CAFile requires client certificates.
	CAFile string

	// ServerName is the expected server name for client connections.
	ServerName string

	// InsecureSkipVerify disables certificate verification. Tests only.
	InsecureSkipVerify bool
}

func loadPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", path)
	}
	return pool, nil
}

func baseTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:             tls.VersionTLS13,
		NextProtos:             version.SupportedALPNProtocols(),
		CurvePreferences:       []tls.CurveID{tls.X25519, tls.CurveP256},
		SessionTicketsDisabled: true,
	}
}

// NewServerTLSConfig builds the listener side configuration.
func NewServerTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil || cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("server certificate and key are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	tlsConf := baseTLSConfig()
	tlsConf.Certificates = []tls.Certificate{cert}
	if cfg.CAFile != "" {
		pool, err := loadPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConf.ClientCAs = pool
		tlsConf.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsConf, nil
}

// NewClientTLSConfig builds the dialing side configuration.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, errors.New("TLSConfig is required")
	}

	tlsConf := baseTLSConfig()
	tlsConf.ServerName = cfg.ServerName
	tlsConf.InsecureSkipVerify = cfg.InsecureSkipVerify
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}
	if cfg.CAFile != "" {
		pool, err := loadPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConf.RootCAs = pool
	}
	return tlsConf, nil
}

// VerifyConnection checks the TLS version and that the negotiated ALPN
// protocol names a compatible major version.
func VerifyConnection(state tls.ConnectionState) error {
	if state.Version != tls.VersionTLS13 {
		return fmt.Errorf("TLS version %x is not TLS 1.3 (0x0304)", state.Version)
	}
	major, err := version.MajorFromALPN(state.NegotiatedProtocol)
	if err != nil {
		return err
	}
	current, _ := version.Parse(version.Current)
	if major != current.Major {
		return fmt.Errorf("%w: ALPN %q", version.ErrIncompatible, state.NegotiatedProtocol)
	}
	return nil
}
