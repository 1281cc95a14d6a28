package log

import (
	"context"
	"log/slog"
	"strings"
)

// SlogAdapter forwards protocol events to an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Peer != "" {
		attrs = append(attrs, slog.String("peer", event.Peer))
	}
	attrs = append(attrs, payloadAttrs(event)...)
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

func payloadAttrs(event Event) []slog.Attr {
	switch {
	case event.Frame != nil:
		return []slog.Attr{
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		}
	case event.Message != nil:
		return messageAttrs(event.Message)
	case event.StateChange != nil:
		sc := event.StateChange
		out := []slog.Attr{
			slog.String("entity", sc.Entity.String()),
			slog.String("old_state", sc.OldState),
			slog.String("new_state", sc.NewState),
		}
		if sc.Reason != "" {
			out = append(out, slog.String("reason", sc.Reason))
		}
		return out
	case event.ControlMsg != nil:
		return []slog.Attr{slog.String("ctrl_type", event.ControlMsg.Type.String())}
	case event.Error != nil:
		e := event.Error
		out := []slog.Attr{
			slog.String("error_layer", e.Layer.String()),
			slog.String("error_msg", e.Message),
			slog.String("error_context", e.Context),
		}
		if e.Status != nil {
			out = append(out, slog.String("error_status", e.Status.String()))
		}
		return out
	}
	return nil
}

func messageAttrs(m *MessageEvent) []slog.Attr {
	out := []slog.Attr{
		slog.Uint64("msg_id", uint64(m.MessageID)),
		slog.String("msg_type", m.Type.String()),
	}
	if m.Operation != nil {
		out = append(out, slog.String("operation", m.Operation.String()))
	}
	if m.Path != nil {
		out = append(out, slog.String("path", "/"+strings.Join(m.Path, "/")))
	}
	if m.Status != nil {
		out = append(out, slog.String("status", m.Status.String()))
	}
	if m.ProcessingTime != nil {
		out = append(out, slog.Duration("processing_time", *m.ProcessingTime))
	}
	return out
}

var _ Logger = (*SlogAdapter)(nil)
