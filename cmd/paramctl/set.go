package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var setPos int

func init() {
	cmd := newSetCmd()
	cmd.Flags().IntVar(&setPos, "pos", 0, "First array element to write")
	rootCmd.AddCommand(cmd)
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <value>...",
		Short: "Write a value",
		Long: `The set command writes a value. The argument is parsed as the kind of
the node; enum nodes accept names. Array elements are given as separate
arguments or comma separated, and --pos writes a range starting at that
element.

Example:
  paramctl set /frontend/gain -12
  paramctl set /acquisition/mode turn-by-turn
  paramctl set /frontend/offsets 0.1,0.2 --pos 2`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func runSet(ctx context.Context, w io.Writer, args []string) error {
	path := args[0]
	return withSession(ctx, func(s *session) error {
		n, err := s.node(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		info, err := n.Info()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		v, err := parseInput(info, args[1:])
		if err != nil {
			return err
		}
		if err := n.SetRange(setPos, v); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if verbose {
			fmt.Fprintf(w, "%s = %s\n", path, formatValue(v, info.Domain))
		}
		return nil
	})
}
