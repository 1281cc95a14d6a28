package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of parameter servers.
	ServiceType = "_paramtree._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default server port.
	DefaultPort = 7420
)

// TXT record keys.
const (
	TXTKeyName    = "name"
	TXTKeyVersion = "version"
	TXTKeyRoot    = "root"
	TXTKeyTLS     = "tls"
	TXTKeyAuth    = "auth"
)

const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// BrowseTimeout is the default timeout for Find.
	BrowseTimeout = 5 * time.Second
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
)

// ServerInfo is what a server advertises about itself.
type ServerInfo struct {
	Name    string
	Version string
	Root    string
	Port    uint16
	TLS     bool
	PSK     bool
}

// Service is a discovered server.
type Service struct {
	ServerInfo

	InstanceName string
	Host         string
	Addresses    []string
}

// Address returns a dialable host:port, preferring IPv4 addresses.
func (s *Service) Address() string {
	host := s.Host
	for _, a := range s.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			host = a
			break
		}
		if host == s.Host {
			host = a
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

// ServiceEntry is a resolved DNS-SD entry, independent of the mDNS
// library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToService decodes the entry's TXT records.
func (e *ServiceEntry) ToService() (*Service, error) {
	info, err := DecodeTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	info.Port = e.Port
	return &Service{
		ServerInfo:   *info,
		InstanceName: e.Instance,
		Host:         e.Host,
		Addresses:    e.Addrs,
	}, nil
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}
