package tree

import (
	"fmt"
	"io"
	"strings"
)

// DumpFlags selects what Dump prints.
type DumpFlags uint8

const (
	// DumpValues prints readable values.
	DumpValues DumpFlags = 1 << iota

	// DumpNodeFlags prints kind and flag letters.
	DumpNodeFlags

	// DumpConstraints prints constraint and enum domain text.
	DumpConstraints

	// DumpHidden includes hidden children of local nodes.
	DumpHidden

	// DumpAll enables everything.
	DumpAll = DumpValues | DumpNodeFlags | DumpConstraints | DumpHidden
)

// Dump writes the subtree below n, one node per line, indented by depth.
// depth limits recursion; depth < 0 is unlimited and 0 prints n only.
func (n Node) Dump(w io.Writer, depth int, flags DumpFlags) error {
	return n.dump(w, 0, depth, flags)
}

func (n Node) dump(w io.Writer, level, depth int, flags DumpFlags) error {
	info, err := n.Info()
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("  ", level))
	b.WriteString(info.Name)
	if info.NodeKind == KindDir || info.NodeKind == KindMount {
		b.WriteByte('/')
	}
	if flags&DumpNodeFlags != 0 {
		if info.Kind.IsValid() {
			fmt.Fprintf(&b, " [%s %s %s]", info.NodeKind, info.Kind, info.Flags)
		} else {
			fmt.Fprintf(&b, " [%s %s]", info.NodeKind, info.Flags)
		}
	}
	if flags&DumpValues != 0 && info.Flags.Readable() && info.Kind.IsValid() {
		if v, err := n.Get(); err == nil {
			b.WriteString(" = ")
			b.WriteString(v.String())
		} else {
			fmt.Fprintf(&b, " = <%v>", err)
		}
	}
	if flags&DumpConstraints != 0 {
		if info.Constraint != "" {
			b.WriteString(" " + info.Constraint)
		}
		if info.Domain != nil {
			b.WriteString(" " + info.Domain.String())
		}
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if depth >= 0 && level >= depth {
		return nil
	}
	var children []Node
	if flags&DumpHidden != 0 {
		children, err = n.allChildren()
	} else {
		children, err = n.Children()
	}
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := c.dump(w, level+1, depth, flags); err != nil {
			return err
		}
	}
	return nil
}
