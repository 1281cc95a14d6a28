package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
)

// DocumentVersion is the current version of the document format.
const DocumentVersion = 1

// ErrUnsupportedVersion is returned by Apply for documents written by a
// newer format.
var ErrUnsupportedVersion = errors.New("unsupported document version")

// Document is the stored form of a subtree's persistent values.
type Document struct {
	// Version is the document format version.
	Version int `yaml:"version"`

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time `yaml:"saved_at"`

	// Entries maps a path below the snapshot root to its value.
	Entries map[string]Entry `yaml:"entries"`
}

// Entry is one stored value in textual form.
type Entry struct {
	Kind   string   `yaml:"kind"`
	Array  bool     `yaml:"array,omitempty"`
	Values []string `yaml:"values,flow"`
}

// Value parses the entry back into a value.
func (e Entry) Value() (value.Value, error) {
	kind, err := value.ParseKind(e.Kind)
	if err != nil {
		return value.Value{}, err
	}
	if e.Array {
		return value.ParseArray(kind, e.Values)
	}
	if len(e.Values) != 1 {
		return value.Value{}, fmt.Errorf("%w: scalar entry with %d values", value.ErrOutOfRange, len(e.Values))
	}
	return value.Parse(kind, e.Values[0])
}

// Paths returns the entry paths in sorted order.
func (d *Document) Paths() []string {
	out := make([]string, 0, len(d.Entries))
	for p := range d.Entries {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Snapshot records every persistent node at and below root.
func Snapshot(root tree.Node) (*Document, error) {
	nodes, err := root.PersistentNodes()
	if err != nil {
		return nil, err
	}
	base, err := root.Path()
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Version: DocumentVersion,
		SavedAt: time.Now().UTC(),
		Entries: make(map[string]Entry, len(nodes)),
	}
	for _, n := range nodes {
		v, err := n.PersistValue()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", n, err)
		}
		p, err := n.Path()
		if err != nil {
			return nil, err
		}
		doc.Entries[tree.Path(p[len(base):]).String()] = Entry{
			Kind:   v.Kind().String(),
			Array:  v.IsArray(),
			Values: v.Strings(),
		}
	}
	return doc, nil
}

// Apply restores every entry of doc below root. Entries that cannot be
// restored are skipped; their errors are joined into the result.
func Apply(root tree.Node, doc *Document, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if doc.Version > DocumentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}

	var errs []error
	restored := 0
	for _, key := range doc.Paths() {
		if err := restore(root, key, doc.Entries[key]); err != nil {
			logger.Warn("skipping stored value", "path", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		restored++
	}
	logger.Debug("restored persistent values", "count", restored, "failed", len(errs))
	return errors.Join(errs...)
}

func restore(root tree.Node, key string, e Entry) error {
	p, err := tree.ParsePath(key)
	if err != nil {
		return err
	}
	n, err := root.NavigatePath(p)
	if err != nil {
		return err
	}
	v, err := e.Value()
	if err != nil {
		return err
	}
	return n.RestoreValue(v)
}
