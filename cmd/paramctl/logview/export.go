package logview

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bpmctl/paramtree/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

var csvHeader = []string{"timestamp", "connection_id", "direction", "layer", "category", "peer", "type", "message_id", "operation", "path", "status"}

// RunExport writes the matching events of the capture file at path to w
// as JSON lines or CSV.
func RunExport(path, format string, filter log.Filter, w io.Writer) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		return eachEvent(path, filter, func(event log.Event) error {
			if err := enc.Encode(event); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		})
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		err := eachEvent(path, filter, func(event log.Event) error {
			return cw.Write(csvRow(event))
		})
		cw.Flush()
		if err != nil {
			return err
		}
		return cw.Error()
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func csvRow(event log.Event) []string {
	kind := "unknown"
	var msgID, op, path, status string
	switch {
	case event.Frame != nil:
		kind = "frame"
	case event.Message != nil:
		m := event.Message
		kind = m.Type.String()
		msgID = strconv.FormatUint(uint64(m.MessageID), 10)
		if m.Operation != nil {
			op = m.Operation.String()
		}
		if m.Path != nil {
			path = "/" + strings.Join(m.Path, "/")
		}
		if m.Status != nil {
			status = m.Status.String()
		}
	case event.StateChange != nil:
		kind = "state"
	case event.ControlMsg != nil:
		kind = event.ControlMsg.Type.String()
	case event.Error != nil:
		kind = "error"
	}
	return []string{
		event.Timestamp.UTC().Format(timeLayout),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.Peer,
		kind,
		msgID,
		op,
		path,
		status,
	}
}

// RunFilter copies the matching events of the capture file at path into
// a new capture file and returns how many were written.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	out, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	count := 0
	err = eachEvent(path, filter, func(event log.Event) error {
		out.Log(event)
		count++
		return nil
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return count, err
	}
	if n := out.Dropped(); n > 0 {
		return count - n, fmt.Errorf("%d events could not be written", n)
	}
	return count, nil
}
