// Package logview implements the protocol capture commands of paramctl.
package logview

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bpmctl/paramtree/pkg/log"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/wire"
)

// Options holds the command-line filter criteria. Empty fields match
// everything.
type Options struct {
	ConnID    string
	Peer      string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	Operation string
	Path      string
}

// Filter converts the options into a reader filter.
func (o Options) Filter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		Peer:         o.Peer,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := parseName[log.Layer]("layer", o.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := parseName[log.Direction]("direction", o.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := parseName[log.Category]("category", o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if o.Operation != "" {
		op, err := parseOperation(o.Operation)
		if err != nil {
			return filter, err
		}
		filter.Operation = &op
	}
	if o.Path != "" {
		p, err := tree.ParsePath(o.Path)
		if err != nil {
			return filter, err
		}
		filter.PathPrefix = p
	}
	return filter, nil
}

// eachEvent calls fn for every event of the capture file at path that
// matches filter, stopping at the first error.
func eachEvent(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView prints the matching events of the capture file at path.
func RunView(path string, filter log.Filter, w io.Writer) error {
	return eachEvent(path, filter, func(event log.Event) error {
		formatEvent(w, event)
		return nil
	})
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timeLayout)

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Message != nil:
		typeLabel = event.Message.Type.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.ControlMsg != nil:
		typeLabel = event.ControlMsg.Type.String()
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	layer := event.Layer.String()
	if event.Category == log.CategoryControl {
		layer = "CTRL"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, shortenConnID(event.ConnectionID), event.Direction, layer, typeLabel)
	if event.Peer != "" {
		fmt.Fprintf(w, " peer=%s", event.Peer)
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.ControlMsg != nil:
		if event.ControlMsg.Sequence != 0 {
			fmt.Fprintf(w, "  Sequence: %d\n", event.ControlMsg.Sequence)
		}
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}
	fmt.Fprintln(w)
}

func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.Type != log.MessageTypeNotification {
		fmt.Fprintf(w, "  MessageID: %d\n", msg.MessageID)
	}
	if msg.Operation != nil {
		fmt.Fprintf(w, "  Operation: %s\n", msg.Operation)
	}
	if msg.Path != nil {
		fmt.Fprintf(w, "  Path: %s\n", tree.Path(msg.Path))
	}
	if msg.Status != nil {
		fmt.Fprintf(w, "  Status: %s (%d)\n", msg.Status, *msg.Status)
	}
	if msg.ProcessingTime != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*msg.ProcessingTime))
	}
	if msg.Event != nil {
		fmt.Fprintf(w, "  Event: %s\n", tree.EventKind(*msg.Event))
	}
	if msg.Value != nil {
		fmt.Fprintf(w, "  Value: %s\n", formatTypedValue(*msg.Value))
	}
}

func formatTypedValue(tv wire.TypedValue) string {
	v, err := tv.Value()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	if !v.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%s %s", v.Kind(), v)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Status != nil {
		fmt.Fprintf(w, "  Status: %s\n", err.Status)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// parseName matches s case-insensitively against the names of an enum
// whose String method reports "UNKNOWN" past the last value.
func parseName[T interface {
	~uint8
	String() string
}](what, s string) (T, error) {
	for i := 0; i <= 0xff; i++ {
		v := T(i)
		name := v.String()
		if name == "UNKNOWN" {
			break
		}
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("invalid %s: %s", what, s)
}

func parseOperation(s string) (wire.Operation, error) {
	for op := wire.OpHello; op.IsValid(); op++ {
		if strings.EqualFold(op.String(), s) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("invalid operation: %s", s)
}
