package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/bpmctl/paramtree/pkg/log"
)

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"small message", []byte("hello")},
		{"max size message", bytes.Repeat([]byte("y"), DefaultMaxMessageSize)},
		{"single byte", []byte{0x42}},
		{"binary data", []byte{0x00, 0xFF, 0x7F, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			if err := NewFrameWriter(buf, 0).WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}
			if buf.Len() != LengthPrefixSize+len(tt.payload) {
				t.Errorf("frame size = %d, want %d", buf.Len(), LengthPrefixSize+len(tt.payload))
			}

			got, err := NewFrameReader(buf, 0).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d bytes", len(got), len(tt.payload))
			}
		})
	}
}

func TestFrameErrors(t *testing.T) {
	lengthOnly := func(n uint32) []byte {
		b := make([]byte, LengthPrefixSize)
		binary.BigEndian.PutUint32(b, n)
		return b
	}

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"empty stream", nil, io.EOF},
		{"zero length", lengthOnly(0), ErrMessageEmpty},
		{"too large", lengthOnly(DefaultMaxMessageSize + 1), ErrMessageTooLarge},
		{"truncated length", []byte{0x00, 0x01}, ErrFrameTruncated},
		{"truncated payload", append(lengthOnly(10), 1, 2, 3), ErrFrameTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameReader(bytes.NewReader(tt.input), 0).ReadFrame()
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadFrame error = %v, want %v", err, tt.want)
			}
		})
	}

	w := NewFrameWriter(io.Discard, 8)
	if err := w.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("WriteFrame(nil) = %v, want ErrMessageEmpty", err)
	}
	if err := w.WriteFrame(make([]byte, 9)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("WriteFrame(9 bytes) = %v, want ErrMessageTooLarge", err)
	}
}

func TestMultipleFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	f := NewFramer(buf, 0)

	messages := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, m := range messages {
		if err := f.WriteFrame(m); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	for i, want := range messages {
		got, err := f.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %q, want %q", i, got, want)
		}
	}
}

type capturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *capturingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *capturingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestFramerLogsFrames(t *testing.T) {
	logger := &capturingLogger{}
	buf := new(bytes.Buffer)
	f := NewFramer(buf, 0)
	f.SetLogger(logger, "conn-1")

	big := bytes.Repeat([]byte{0xAB}, MaxLogFrameDataSize+10)
	if err := f.WriteFrame(big); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if _, err := f.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 2 {
		t.Fatalf("logged %d events, want 2", len(events))
	}
	out, in := events[0], events[1]
	if out.Direction != log.DirectionOut || in.Direction != log.DirectionIn {
		t.Errorf("directions = %v/%v, want OUT/IN", out.Direction, in.Direction)
	}
	for _, e := range events {
		if e.ConnectionID != "conn-1" || e.Layer != log.LayerTransport {
			t.Errorf("event identity = %q/%v", e.ConnectionID, e.Layer)
		}
		if e.Frame == nil || !e.Frame.Truncated || len(e.Frame.Data) != MaxLogFrameDataSize {
			t.Fatalf("frame = %+v, want truncated to %d bytes", e.Frame, MaxLogFrameDataSize)
		}
		if e.Frame.Size != LengthPrefixSize+len(big) {
			t.Errorf("frame size = %d, want %d", e.Frame.Size, LengthPrefixSize+len(big))
		}
	}
}
