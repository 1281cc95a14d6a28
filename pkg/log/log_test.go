package log

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bpmctl/paramtree/pkg/wire"
)

func writeCapture(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.plog")
	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		fl.Log(e)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	defer r.Close()
	var out []Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, e)
	}
}

func TestMessageEventRoundTrip(t *testing.T) {
	req := &wire.Request{MessageID: 7, Operation: wire.OpSetValue, Path: []string{"bpm", "gain"}}
	event := RequestEvent("conn-1", DirectionIn, req)
	event.Peer = "paramctl"

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, event.Timestamp)
	}
	if decoded.Peer != "paramctl" || decoded.ConnectionID != "conn-1" {
		t.Errorf("identity mismatch: %+v", decoded)
	}
	m := decoded.Message
	if m == nil || m.Operation == nil || *m.Operation != wire.OpSetValue {
		t.Fatalf("Message = %+v, want SetValue request", m)
	}
	if strings.Join(m.Path, "/") != "bpm/gain" {
		t.Errorf("Path = %v", m.Path)
	}
}

func TestEventStreamKeepsNanoseconds(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base.Add(1), ConnectionID: "a", Layer: LayerService, Category: CategoryState},
		{Timestamp: base.Add(2), ConnectionID: "b", Layer: LayerService, Category: CategoryState},
	}

	var buf bytes.Buffer
	enc := NewEventEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	dec := NewEventDecoder(&buf)
	for i, want := range events {
		got, err := dec.Decode()
		if err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		if !got.Timestamp.Equal(want.Timestamp) || got.ConnectionID != want.ConnectionID {
			t.Errorf("event %d = %v %q, want %v %q", i, got.Timestamp, got.ConnectionID, want.Timestamp, want.ConnectionID)
		}
	}
	if _, err := dec.Decode(); !errors.Is(err, io.EOF) {
		t.Errorf("Decode at end = %v, want io.EOF", err)
	}
}

func TestResponseAndNotificationEvents(t *testing.T) {
	resp := ResponseEvent("c", DirectionOut, &wire.Response{MessageID: 3, Status: wire.StatusBusy}, 2*time.Millisecond)
	if resp.Message.Status == nil || *resp.Message.Status != wire.StatusBusy {
		t.Errorf("Status = %v", resp.Message.Status)
	}
	if resp.Message.ProcessingTime == nil || *resp.Message.ProcessingTime != 2*time.Millisecond {
		t.Errorf("ProcessingTime = %v", resp.Message.ProcessingTime)
	}
	if r := ResponseEvent("c", DirectionIn, &wire.Response{MessageID: 3}, 0); r.Message.ProcessingTime != nil {
		t.Error("zero elapsed must not be recorded")
	}

	n := NotificationEvent("c", DirectionOut, &wire.Notification{
		Event:   1,
		Path:    []string{"gain"},
		Payload: wire.TypedValue{Kind: 2, Ints: []int64{-10}},
	})
	if n.Message.Type != MessageTypeNotification || n.Message.Value == nil || n.Message.Value.Ints[0] != -10 {
		t.Errorf("notification event = %+v", n.Message)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(i int, conn string, op wire.Operation, path ...string) Event {
		e := RequestEvent(conn, DirectionIn, &wire.Request{MessageID: uint32(i + 1), Operation: op, Path: path})
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		return e
	}
	events := []Event{
		mk(0, "a", wire.OpGetValue, "bpm", "gain"),
		mk(1, "a", wire.OpSetValue, "bpm", "gain"),
		mk(2, "b", wire.OpGetValue, "adc", "rate"),
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "b", Layer: LayerTransport, Frame: &FrameEvent{Size: 12}},
	}
	path := writeCapture(t, events)

	all, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if got := len(readAll(t, all)); got != 4 {
		t.Fatalf("read %d events, want 4", got)
	}

	get := wire.OpGetValue
	end := base.Add(2 * time.Second)
	transport := LayerTransport
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"connection", Filter{ConnectionID: "b"}, 2},
		{"operation", Filter{Operation: &get}, 2},
		{"path prefix", Filter{PathPrefix: []string{"bpm"}}, 2},
		{"longer prefix than path", Filter{PathPrefix: []string{"bpm", "gain", "x"}}, 0},
		{"time end", Filter{TimeEnd: &end}, 2},
		{"layer", Filter{Layer: &transport}, 1},
		{"combined", Filter{ConnectionID: "a", Operation: &get}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("matched %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderTruncatedFile(t *testing.T) {
	path := writeCapture(t, []Event{
		RequestEvent("a", DirectionIn, &wire.Request{MessageID: 1, Operation: wire.OpGetName}),
		RequestEvent("a", DirectionIn, &wire.Request{MessageID: 2, Operation: wire.OpGetName}),
	})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	if _, err := r.Next(); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if _, err := r.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("truncated event error = %v, want decode error", err)
	}
}

func TestFileLoggerClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.plog")
	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if fl.Path() != path {
		t.Errorf("Path() = %q", fl.Path())
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	fl.Log(Event{ConnectionID: "ignored"})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("file size = %d after logging on a closed logger", info.Size())
	}
	if fl.Dropped() != 0 {
		t.Errorf("Dropped() = %d", fl.Dropped())
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b []Event
	m := NewMultiLogger(
		LoggerFunc(func(e Event) { a = append(a, e) }),
		nil,
		LoggerFunc(func(e Event) { b = append(b, e) }),
	)
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	m.Log(Event{ConnectionID: "x"})
	if len(a) != 1 || len(b) != 1 {
		t.Errorf("fan out = %d/%d, want 1/1", len(a), len(b))
	}

	NewMultiLogger().Log(Event{})
	OrNoop(nil).Log(Event{})
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewSlogAdapter(logger)

	e := RequestEvent("conn-9", DirectionIn, &wire.Request{MessageID: 4, Operation: wire.OpGetValue, Path: []string{"bpm", "gain"}})
	e.Peer = "console"
	a.Log(e)

	out := buf.String()
	for _, want := range []string{"conn_id=conn-9", "operation=GetValue", "path=/bpm/gain", "peer=console", "direction=IN"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerService.String(), "SERVICE"},
		{CategoryError.String(), "ERROR"},
		{RoleClient.String(), "CLIENT"},
		{MessageTypeNotification.String(), "NOTIFICATION"},
		{StateEntitySubscription.String(), "SUBSCRIPTION"},
		{ControlMsgClose.String(), "CLOSE"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
