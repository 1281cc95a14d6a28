package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/pkg/discovery"
)

var (
	browseTimeout   time.Duration
	browseInterface string
)

func init() {
	cmd := newBrowseCmd()
	cmd.Flags().DurationVarP(&browseTimeout, "wait", "w", 3*time.Second, "How long to listen for announcements")
	cmd.Flags().StringVar(&browseInterface, "interface", "", "Network interface to browse on (default all)")
	rootCmd.AddCommand(cmd)
}

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "List servers announced via mDNS",
		Long: `The browse command listens for ` + discovery.ServiceType + ` announcements on
the local network and lists every server found.

Example:
  paramctl browse
  paramctl browse --wait 10s --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type browseResult struct {
	Instance string `json:"instance"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Version  string `json:"version"`
	Root     string `json:"root"`
	TLS      bool   `json:"tls"`
	PSK      bool   `json:"psk"`
}

func runBrowse(ctx context.Context, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, browseTimeout)
	defer cancel()

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: browseInterface})
	services, err := browser.Browse(ctx)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}

	var results []browseResult
	for svc := range services {
		results = append(results, browseResult{
			Instance: svc.InstanceName,
			Name:     svc.Name,
			Address:  svc.Address(),
			Version:  svc.Version,
			Root:     svc.Root,
			TLS:      svc.TLS,
			PSK:      svc.PSK,
		})
	}
	return printServices(w, results)
}

func printServices(w io.Writer, results []browseResult) error {
	if jsonOut {
		if results == nil {
			results = []browseResult{}
		}
		return printJSON(w, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No servers found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE\tADDRESS\tVERSION\tROOT\tSECURITY")
	for _, r := range results {
		security := "none"
		switch {
		case r.TLS && r.PSK:
			security = "tls+psk"
		case r.TLS:
			security = "tls"
		case r.PSK:
			security = "psk"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Instance, r.Address, r.Version, r.Root, security)
	}
	return tw.Flush()
}
