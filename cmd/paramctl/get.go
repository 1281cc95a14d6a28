package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/pkg/value"
)

var (
	getPos   int
	getCount int
)

func init() {
	cmd := newGetCmd()
	cmd.Flags().IntVar(&getPos, "pos", 0, "First array element to read")
	cmd.Flags().IntVar(&getCount, "count", -1, "Number of array elements to read (-1 for all)")
	rootCmd.AddCommand(cmd)
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>...",
		Short: "Read one or more values",
		Long: `The get command reads the current value of each path. Enum values are
printed by name.

Example:
  paramctl get /frontend/gain
  paramctl get /position/history --pos 4 --count 8
  paramctl get /position/x /position/y --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

type getResult struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

func runGet(ctx context.Context, w io.Writer, args []string) error {
	return withSession(ctx, func(s *session) error {
		var results []getResult
		for _, path := range args {
			n, err := s.node(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			info, err := n.Info()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			var v value.Value
			if info.Flags.Array() {
				v, err = n.GetRange(getPos, getCount)
			} else {
				v, err = n.Get()
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			if jsonOut {
				results = append(results, getResult{Path: path, Kind: info.Kind.String(), Value: jsonValue(v, info.Domain)})
				continue
			}
			if len(args) > 1 {
				fmt.Fprintf(w, "%s = %s\n", path, formatValue(v, info.Domain))
			} else {
				fmt.Fprintln(w, formatValue(v, info.Domain))
			}
		}
		if jsonOut {
			if len(results) == 1 {
				return printJSON(w, results[0])
			}
			return printJSON(w, results)
		}
		return nil
	})
}
