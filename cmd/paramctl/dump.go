package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/pkg/tree"
)

var (
	dumpDepth int
	dumpFlags string
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().IntVarP(&dumpDepth, "depth", "d", -1, "Maximum depth (-1 for unlimited)")
	cmd.Flags().StringVar(&dumpFlags, "show", "values", "Comma separated: values, flags, constraints, all")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump [path]",
		Short: "Print a subtree",
		Long: `The dump command prints the subtree below a node, one node per line,
with values and optionally kind, flags and constraints.

Example:
  paramctl dump
  paramctl dump /frontend --show all
  paramctl dump --depth 1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return runDump(cmd.Context(), cmd.OutOrStdout(), path)
		},
	}
}

func parseDumpFlags(s string) (tree.DumpFlags, error) {
	var flags tree.DumpFlags
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "":
		case "values":
			flags |= tree.DumpValues
		case "flags":
			flags |= tree.DumpNodeFlags
		case "constraints":
			flags |= tree.DumpConstraints
		case "all":
			flags |= tree.DumpValues | tree.DumpNodeFlags | tree.DumpConstraints
		default:
			return 0, fmt.Errorf("unknown dump option %q (valid: values, flags, constraints, all)", part)
		}
	}
	return flags, nil
}

func runDump(ctx context.Context, w io.Writer, path string) error {
	flags, err := parseDumpFlags(dumpFlags)
	if err != nil {
		return err
	}
	return withSession(ctx, func(s *session) error {
		n, err := s.node(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return dumpNode(w, n, n.Equal(s.mount), dumpDepth, flags)
	})
}

// dumpNode dumps n. The exported root has no name of its own, so only its
// children are printed.
func dumpNode(w io.Writer, n tree.Node, isRoot bool, depth int, flags tree.DumpFlags) error {
	if !isRoot {
		return n.Dump(w, depth, flags)
	}
	if depth == 0 {
		return nil
	}
	children, err := n.Children()
	if err != nil {
		return err
	}
	if depth > 0 {
		depth--
	}
	for _, c := range children {
		if err := c.Dump(w, depth, flags); err != nil {
			return err
		}
	}
	return nil
}
