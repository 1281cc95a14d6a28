package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newExecCmd())
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <path>...",
		Short: "Run command nodes",
		Long: `The exec command runs each command node in order and stops at the first
failure.

Example:
  paramctl exec /acquisition/trigger
  paramctl exec /reset`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func runExec(ctx context.Context, w io.Writer, args []string) error {
	return withSession(ctx, func(s *session) error {
		for _, path := range args {
			n, err := s.node(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := n.Execute(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if verbose {
				fmt.Fprintf(w, "%s: done\n", path)
			}
		}
		return nil
	})
}
