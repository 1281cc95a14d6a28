package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/pkg/version"
)

var (
	// Global flags
	address     string
	serviceName string
	clientName  string
	pskHex      string
	timeout     time.Duration
	useTLS      bool
	tlsCA       string
	tlsCert     string
	tlsKey      string
	tlsServer   string
	insecure    bool
	protocolLog string
	jsonOut     bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "paramctl",
	Short: "Inspect and change the parameter tree of a remote instrument",
	Long: `paramctl connects to a paramd server and reads, writes, watches and
dumps the parameters it exports. Servers can be addressed directly or found
by instance name via mDNS.`,
	Version:       version.Current,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&address, "addr", "a", "", "Server address host:port (default localhost:7420)")
	pf.StringVarP(&serviceName, "service", "s", "", "Find the server by mDNS instance name")
	pf.StringVar(&clientName, "name", defaultClientName(), "Client name announced to the server")
	pf.StringVar(&pskHex, "psk", os.Getenv("PARAMCTL_PSK"), "Hex encoded pre-shared key (env PARAMCTL_PSK)")
	pf.DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	pf.BoolVar(&useTLS, "tls", false, "Connect with TLS")
	pf.StringVar(&tlsCA, "tls-ca", "", "CA file to verify the server")
	pf.StringVar(&tlsCert, "tls-cert", "", "Client certificate file")
	pf.StringVar(&tlsKey, "tls-key", "", "Client key file")
	pf.StringVar(&tlsServer, "tls-server-name", "", "Expected server name")
	pf.BoolVar(&insecure, "insecure", false, "Skip server certificate verification")
	pf.StringVar(&protocolLog, "protocol-log", "", "Capture protocol messages to this file")
	pf.BoolVar(&jsonOut, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func defaultClientName() string {
	host, err := os.Hostname()
	if err != nil {
		return "paramctl"
	}
	return "paramctl@" + host
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// printJSON outputs data as indented JSON.
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
