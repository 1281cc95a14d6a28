package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newResizeCmd())
}

func newResizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resize <path> <size>",
		Short: "Change the number of elements of an array",
		Long: `The resize command changes the length of an array node. New elements
are zero; the server rejects sizes its constraint does not allow.

Example:
  paramctl resize /frontend/offsets 8`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResize(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func runResize(ctx context.Context, w io.Writer, path, sizeArg string) error {
	size, err := strconv.Atoi(sizeArg)
	if err != nil || size < 0 {
		return fmt.Errorf("invalid size %q", sizeArg)
	}
	return withSession(ctx, func(s *session) error {
		n, err := s.node(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := n.Resize(size); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if verbose {
			fmt.Fprintf(w, "%s: %d elements\n", path, size)
		}
		return nil
	})
}
