package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/pkg/tree"
)

var lsLong bool

func init() {
	cmd := newLsCmd()
	cmd.Flags().BoolVarP(&lsLong, "long", "l", false, "Show kind, flags and size")
	rootCmd.AddCommand(cmd)
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List the children of a node",
		Long: `The ls command lists the visible children of a node, the exported root
by default. Directories end with a slash.

Example:
  paramctl ls
  paramctl ls -l /frontend`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return runLs(cmd.Context(), cmd.OutOrStdout(), path)
		},
	}
}

type lsEntry struct {
	Name     string `json:"name"`
	NodeKind string `json:"node_kind"`
	Kind     string `json:"kind,omitempty"`
	Flags    string `json:"flags"`
	Size     int    `json:"size"`
	Children int    `json:"children"`
}

func runLs(ctx context.Context, w io.Writer, path string) error {
	return withSession(ctx, func(s *session) error {
		n, err := s.node(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		entries, err := listChildren(n)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return printEntries(w, entries, lsLong)
	})
}

func listChildren(n tree.Node) ([]lsEntry, error) {
	children, err := n.Children()
	if err != nil {
		return nil, err
	}
	entries := make([]lsEntry, 0, len(children))
	for _, c := range children {
		info, err := c.Info()
		if err != nil {
			return nil, err
		}
		e := lsEntry{
			Name:     info.Name,
			NodeKind: info.NodeKind.String(),
			Flags:    info.Flags.String(),
			Size:     info.Size,
			Children: info.Children,
		}
		if info.Kind.IsValid() {
			e.Kind = info.Kind.String()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (e lsEntry) display() string {
	if e.NodeKind == tree.KindDir.String() || e.NodeKind == tree.KindMount.String() {
		return e.Name + "/"
	}
	return e.Name
}

func printEntries(w io.Writer, entries []lsEntry, long bool) error {
	if jsonOut {
		return printJSON(w, entries)
	}
	if !long {
		for _, e := range entries {
			fmt.Fprintln(w, e.display())
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		kind := e.Kind
		if kind == "" {
			kind = "-"
		}
		size := fmt.Sprint(e.Size)
		if e.Children > 0 {
			size = fmt.Sprintf("%d children", e.Children)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Flags, e.NodeKind, kind, size, e.display())
	}
	return tw.Flush()
}
