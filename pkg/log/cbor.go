package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Events are stored with RFC 3339 nanosecond timestamps, so capture files
// keep the ordering of events that arrive within the same microsecond.
var (
	eventEnc = mustEventEncMode()
	eventDec = mustEventDecMode()
)

func mustEventEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic("log: event encoder: " + err.Error())
	}
	return em
}

// A capture written by an older build may carry fields this one does not
// know about. Those are skipped.
func mustEventDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic("log: event decoder: " + err.Error())
	}
	return dm
}

// EncodeEvent returns the capture encoding of event.
func EncodeEvent(event Event) ([]byte, error) {
	return eventEnc.Marshal(event)
}

// DecodeEvent parses one captured event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := eventDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// EventEncoder appends events to a capture stream.
type EventEncoder struct {
	enc *cbor.Encoder
}

// NewEventEncoder returns an encoder appending to w.
func NewEventEncoder(w io.Writer) *EventEncoder {
	return &EventEncoder{enc: eventEnc.NewEncoder(w)}
}

func (e *EventEncoder) Encode(event Event) error {
	return e.enc.Encode(event)
}

// EventDecoder reads events back from a capture stream.
type EventDecoder struct {
	dec *cbor.Decoder
}

func NewEventDecoder(r io.Reader) *EventDecoder {
	return &EventDecoder{dec: eventDec.NewDecoder(r)}
}

// Decode returns the next event. It returns io.EOF at a clean end of the
// stream.
func (d *EventDecoder) Decode() (Event, error) {
	var event Event
	if err := d.dec.Decode(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}
