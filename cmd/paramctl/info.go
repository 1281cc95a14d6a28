package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bpmctl/paramtree/pkg/tree"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "Show the metadata of a node",
		Long: `The info command prints the kind, capability flags, size, constraint and
enum domain of a node.

Flags are printed as letters: R readable, W writable, A array,
P persistent, C constant, X executable, H hidden, S signal.

Example:
  paramctl info /acquisition/decimation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

type infoOutput struct {
	Path        string   `json:"path"`
	NodeKind    string   `json:"node_kind"`
	Kind        string   `json:"kind,omitempty"`
	Flags       string   `json:"flags"`
	Size        int      `json:"size"`
	Children    int      `json:"children"`
	Constraint  string   `json:"constraint,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

func runInfo(ctx context.Context, w io.Writer, path string) error {
	return withSession(ctx, func(s *session) error {
		n, err := s.node(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		info, err := n.Info()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out := describeInfo(s.relPath(n), info)
		if jsonOut {
			return printJSON(w, out)
		}
		printInfo(w, out)
		return nil
	})
}

func describeInfo(path string, info tree.Info) infoOutput {
	out := infoOutput{
		Path:        path,
		NodeKind:    info.NodeKind.String(),
		Flags:       info.Flags.String(),
		Size:        info.Size,
		Children:    info.Children,
		Constraint:  info.Constraint,
		Description: info.Description,
	}
	if info.Kind.IsValid() {
		out.Kind = info.Kind.String()
	}
	if info.Domain != nil {
		for _, e := range info.Domain.Entries() {
			out.Enum = append(out.Enum, fmt.Sprintf("%s=%d", e.Name, e.Value))
		}
	}
	return out
}

func printInfo(w io.Writer, out infoOutput) {
	fmt.Fprintf(w, "Path:        %s\n", out.Path)
	fmt.Fprintf(w, "Node kind:   %s\n", out.NodeKind)
	if out.Kind != "" {
		fmt.Fprintf(w, "Value kind:  %s\n", out.Kind)
	}
	fmt.Fprintf(w, "Flags:       %s\n", out.Flags)
	fmt.Fprintf(w, "Size:        %d\n", out.Size)
	if out.Children > 0 {
		fmt.Fprintf(w, "Children:    %d\n", out.Children)
	}
	if out.Constraint != "" {
		fmt.Fprintf(w, "Constraint:  %s\n", out.Constraint)
	}
	for i, e := range out.Enum {
		if i == 0 {
			fmt.Fprintf(w, "Enum:        %s\n", e)
		} else {
			fmt.Fprintf(w, "             %s\n", e)
		}
	}
	if out.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", out.Description)
	}
}
