package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/cmd/paramctl/logview"
)

var (
	logOpts   logview.Options
	logFormat string
	logOutput string
)

func init() {
	rootCmd.AddCommand(newLogCmd())
}

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&logOpts.ConnID, "conn", "", "Filter by connection ID")
	f.StringVar(&logOpts.Peer, "peer", "", "Filter by peer name")
	f.StringVar(&logOpts.TimeStart, "time-start", "", "Only events at or after this RFC3339 time")
	f.StringVar(&logOpts.TimeEnd, "time-end", "", "Only events at or before this RFC3339 time")
	f.StringVar(&logOpts.Layer, "layer", "", "Filter by layer (transport, wire, service)")
	f.StringVar(&logOpts.Direction, "dir", "", "Filter by direction (in, out)")
	f.StringVar(&logOpts.Category, "category", "", "Filter by category (message, control, state, error)")
	f.StringVar(&logOpts.Operation, "op", "", "Filter by operation, e.g. SetValue")
	f.StringVar(&logOpts.Path, "path", "", "Only messages at or below this path")
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "View and analyze protocol capture files",
		Long: `The log commands read capture files written with --protocol-log by
paramd or paramctl.`,
	}
	cmd.AddCommand(newLogViewCmd(), newLogStatsCmd(), newLogExportCmd(), newLogFilterCmd())
	return cmd
}

func newLogViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Print the events of a capture",
		Long: `Example:
  paramctl log view paramd.plog
  paramctl log view paramd.plog --op SetValue --dir in`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := logOpts.Filter()
			if err != nil {
				return err
			}
			return logview.RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	addFilterFlags(cmd)
	return cmd
}

func newLogStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Summarize requests, failures and connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut {
				stats, err := logview.Collect(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			}
			return logview.RunStats(args[0], cmd.OutOrStdout())
		},
	}
}

func newLogExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a capture as JSON lines or CSV",
		Long: `Example:
  paramctl log export paramd.plog --format csv > capture.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := logOpts.Filter()
			if err != nil {
				return err
			}
			return logview.RunExport(args[0], logFormat, filter, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&logFormat, "format", "jsonl", "Output format (jsonl, csv)")
	addFilterFlags(cmd)
	return cmd
}

func newLogFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <file>",
		Short: "Write the matching events to a new capture file",
		Long: `Example:
  paramctl log filter paramd.plog -o session.plog --conn 3f2a9c1e`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := logOpts.Filter()
			if err != nil {
				return err
			}
			n, err := logview.RunFilter(args[0], logOutput, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", n, logOutput)
			return nil
		},
	}
	cmd.Flags().StringVarP(&logOutput, "output", "o", "", "Output capture file")
	_ = cmd.MarkFlagRequired("output")
	addFilterFlags(cmd)
	return cmd
}
