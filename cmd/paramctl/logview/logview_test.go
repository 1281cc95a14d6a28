package logview

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bpmctl/paramtree/pkg/log"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
	"github.com/bpmctl/paramtree/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.plog")
	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

var ts = time.Date(2026, 3, 4, 9, 30, 0, 250000000, time.UTC)

func sessionEvents() []log.Event {
	get := &wire.Request{MessageID: 7, Operation: wire.OpGetValue, Path: []string{"frontend", "gain"}}
	set := &wire.Request{MessageID: 8, Operation: wire.OpSetValue, Path: []string{"frontend", "gain"}}
	notif := &wire.Notification{
		Path:    []string{"frontend", "gain"},
		Event:   uint8(tree.ValueChanged),
		Payload: wire.FromValue(value.Int32(-12)),
	}

	events := []log.Event{
		log.RequestEvent("conn-aaaaaaaa-1", log.DirectionIn, get),
		log.ResponseEvent("conn-aaaaaaaa-1", log.DirectionOut, &wire.Response{MessageID: 7, Status: wire.StatusSuccess}, 120*time.Microsecond),
		log.RequestEvent("conn-aaaaaaaa-1", log.DirectionIn, set),
		log.ResponseEvent("conn-aaaaaaaa-1", log.DirectionOut, &wire.Response{MessageID: 8, Status: wire.StatusValidationFailed}, 2*time.Millisecond),
		log.NotificationEvent("conn-bbbbbbbb-2", log.DirectionOut, notif),
		{
			ConnectionID: "conn-bbbbbbbb-2",
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryControl,
			ControlMsg:   &log.ControlMsgEvent{Type: log.ControlMsgPing, Sequence: 3},
		},
		{
			ConnectionID: "conn-bbbbbbbb-2",
			Layer:        log.LayerService,
			Category:     log.CategoryError,
			Error:        &log.ErrorEventData{Layer: log.LayerService, Message: "bad MAC", Context: "authenticate"},
		},
	}
	for i := range events {
		events[i].Timestamp = ts.Add(time.Duration(i) * time.Second)
		if events[i].ConnectionID == "conn-aaaaaaaa-1" {
			events[i].Peer = "operator-console"
		}
	}
	return events
}

func TestFormatRequestEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sessionEvents()[0])
	output := buf.String()

	for _, want := range []string{
		"2026-03-04T09:30:00.250000Z",
		"[conn:conn-aaa]",
		"IN  WIRE REQUEST",
		"peer=operator-console",
		"MessageID: 7",
		"Operation: GetValue",
		"Path: /frontend/gain",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestFormatResponseAndNotification(t *testing.T) {
	events := sessionEvents()

	var buf bytes.Buffer
	formatEvent(&buf, events[3])
	if out := buf.String(); !strings.Contains(out, "Status: VALIDATION_FAILED (7)") || !strings.Contains(out, "Duration: 2.000ms") {
		t.Errorf("unexpected response output:\n%s", out)
	}

	buf.Reset()
	formatEvent(&buf, events[4])
	out := buf.String()
	if strings.Contains(out, "MessageID") {
		t.Errorf("notification should not print a message id:\n%s", out)
	}
	if !strings.Contains(out, "Event: value-changed") || !strings.Contains(out, "Value: i32 -12") {
		t.Errorf("unexpected notification output:\n%s", out)
	}
}

func TestFormatControlAndError(t *testing.T) {
	events := sessionEvents()

	var buf bytes.Buffer
	formatEvent(&buf, events[5])
	if out := buf.String(); !strings.Contains(out, "CTRL PING") || !strings.Contains(out, "Sequence: 3") {
		t.Errorf("unexpected control output:\n%s", out)
	}

	buf.Reset()
	formatEvent(&buf, events[6])
	if out := buf.String(); !strings.Contains(out, "Message: bad MAC") || !strings.Contains(out, "Context: authenticate") {
		t.Errorf("unexpected error output:\n%s", out)
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	tests := []struct {
		name string
		opts Options
		want int
	}{
		{"All", Options{}, 7},
		{"Connection", Options{ConnID: "conn-bbbbbbbb-2"}, 3},
		{"Peer", Options{Peer: "operator-console"}, 4},
		{"Direction", Options{Direction: "out"}, 3},
		{"Layer", Options{Layer: "transport"}, 1},
		{"Category", Options{Category: "error"}, 1},
		{"Operation", Options{Operation: "setvalue"}, 1},
		{"Path", Options{Path: "/frontend"}, 3},
		{"TimeWindow", Options{TimeStart: "2026-03-04T09:30:02Z", TimeEnd: "2026-03-04T09:30:04Z"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := tt.opts.Filter()
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}
			var buf bytes.Buffer
			if err := RunView(path, filter, &buf); err != nil {
				t.Fatalf("RunView failed: %v", err)
			}
			if got := strings.Count(buf.String(), "[conn:"); got != tt.want {
				t.Errorf("got %d events, want %d\n%s", got, tt.want, buf.String())
			}
		})
	}
}

func TestOptionsFilterErrors(t *testing.T) {
	tests := []Options{
		{Layer: "physical"},
		{Direction: "sideways"},
		{Category: "snapshot"},
		{Operation: "Read"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
	}
	for _, opts := range tests {
		if _, err := opts.Filter(); err == nil {
			t.Errorf("Filter(%+v) expected error", opts)
		}
	}
}

func TestRunViewMissingFile(t *testing.T) {
	if err := RunView(filepath.Join(t.TempDir(), "missing.plog"), log.Filter{}, io.Discard); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRunStats(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	stats, err := Collect(path)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 7 {
		t.Errorf("TotalEvents = %d, want 7", stats.TotalEvents)
	}
	if stats.Requests[wire.OpGetValue] != 1 || stats.Requests[wire.OpSetValue] != 1 {
		t.Errorf("Requests = %v", stats.Requests)
	}
	if stats.Failures[wire.StatusValidationFailed] != 1 || len(stats.Failures) != 1 {
		t.Errorf("Failures = %v", stats.Failures)
	}
	if stats.Notifications != 1 || stats.Errors != 1 {
		t.Errorf("Notifications = %d, Errors = %d", stats.Notifications, stats.Errors)
	}
	conn := stats.Connections["conn-aaaaaaaa-1"]
	if conn == nil || conn.Peer != "operator-console" || conn.Slowest != 2*time.Millisecond {
		t.Errorf("connection stats = %+v", conn)
	}

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Total Events: 7", "GetValue:", "VALIDATION_FAILED:", "Connections: 2", "Peer: operator-console", "Errors: 1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestRunStatsEmpty(t *testing.T) {
	path := createTestLogFile(t, nil)
	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestRunExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "jsonl", log.Filter{}, &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if first["ConnectionID"] != "conn-aaaaaaaa-1" {
		t.Errorf("ConnectionID = %v", first["ConnectionID"])
	}
}

func TestRunExportCSV(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "csv", log.Filter{}, &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("got %d rows, want header + 7", len(rows))
	}
	set := rows[3]
	if set[8] != "SetValue" || set[9] != "/frontend/gain" {
		t.Errorf("row = %v", set)
	}
	if rows[4][10] != "VALIDATION_FAILED" {
		t.Errorf("row = %v", rows[4])
	}

	if err := RunExport(path, "xml", log.Filter{}, io.Discard); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.plog")

	filter, err := Options{ConnID: "conn-aaaaaaaa-1", Direction: "in"}.Filter()
	if err != nil {
		t.Fatal(err)
	}
	n, err := RunFilter(path, out, filter)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("filtered %d events, want 2", n)
	}

	stats, err := Collect(out)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 2 || stats.Requests[wire.OpSetValue] != 1 {
		t.Errorf("filtered file stats = %+v", stats)
	}
}
