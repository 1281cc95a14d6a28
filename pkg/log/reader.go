package log

import (
	"errors"
	"io"
	"os"
	"slices"
	"time"

	"github.com/bpmctl/paramtree/pkg/wire"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category
	TimeStart    *time.Time // inclusive
	TimeEnd      *time.Time // exclusive
	Peer         string

	// Operation matches request events with this operation.
	Operation *wire.Operation

	// PathPrefix matches message events whose path starts with it.
	PathPrefix []string
}

func (f *Filter) matches(event Event) bool {
	if f.ConnectionID != "" && event.ConnectionID != f.ConnectionID {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.Peer != "" && event.Peer != f.Peer {
		return false
	}
	if f.Operation != nil {
		if event.Message == nil || event.Message.Operation == nil || *event.Message.Operation != *f.Operation {
			return false
		}
	}
	if len(f.PathPrefix) > 0 {
		if event.Message == nil || len(event.Message.Path) < len(f.PathPrefix) {
			return false
		}
		if !slices.Equal(event.Message.Path[:len(f.PathPrefix)], f.PathPrefix) {
			return false
		}
	}
	return true
}

// Reader streams events from a capture file.
type Reader struct {
	file    *os.File
	decoder *EventDecoder
	filter  Filter
}

// NewReader opens a capture file and returns every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file and returns the events matching
// filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewEventDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
// A partially written trailing event yields io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	for {
		event, err := r.decoder.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
