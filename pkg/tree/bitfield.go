package tree

import (
	"fmt"
	"sync/atomic"

	"github.com/bpmctl/paramtree/pkg/value"
)

// bitStore views width bits at offset of an externally owned word. Reads
// sign-extend for signed kinds; writes are masked read-modify-write with
// compare-and-swap, so other fields of the same word are preserved even when
// the owner updates the word concurrently.
type bitStore struct {
	kind   value.Kind
	offset uint
	width  uint
	mask   uint64
	load64 func() uint64
	cas64  func(old, next uint64) bool
}

func newBitStore32(word *uint32, offset, width uint, kind value.Kind) (*bitStore, error) {
	if word == nil {
		return nil, fmt.Errorf("%w: nil word", ErrInvalidName)
	}
	if err := checkBitField(32, offset, width, kind); err != nil {
		return nil, err
	}
	return &bitStore{
		kind:   kind,
		offset: offset,
		width:  width,
		mask:   uint64(1)<<width - 1,
		load64: func() uint64 { return uint64(atomic.LoadUint32(word)) },
		cas64: func(old, next uint64) bool {
			return atomic.CompareAndSwapUint32(word, uint32(old), uint32(next))
		},
	}, nil
}

func newBitStore64(word *uint64, offset, width uint, kind value.Kind) (*bitStore, error) {
	if word == nil {
		return nil, fmt.Errorf("%w: nil word", ErrInvalidName)
	}
	if err := checkBitField(64, offset, width, kind); err != nil {
		return nil, err
	}
	return &bitStore{
		kind:   kind,
		offset: offset,
		width:  width,
		mask:   uint64(1)<<width - 1,
		load64: func() uint64 { return atomic.LoadUint64(word) },
		cas64:  func(old, next uint64) bool { return atomic.CompareAndSwapUint64(word, old, next) },
	}, nil
}

func checkBitField(wordBits, offset, width uint, kind value.Kind) error {
	if width == 0 || offset+width > wordBits {
		return fmt.Errorf("%w: bits [%d, %d) outside %d-bit word", ErrSizeOutOfRange, offset, offset+width, wordBits)
	}
	switch {
	case kind == value.KindBool:
		if width != 1 {
			return fmt.Errorf("%w: bool bit field must be 1 bit wide", ErrKindMismatch)
		}
	case kind.IsInteger():
		if int(width) > kind.Bits() {
			return fmt.Errorf("%w: %d bits do not fit %s", ErrKindMismatch, width, kind)
		}
	default:
		return fmt.Errorf("%w: bit field of kind %s", ErrKindMismatch, kind)
	}
	return nil
}

func (s *bitStore) expression() string {
	return fmt.Sprintf("bits(%d, %d)", s.offset, s.width)
}

func (s *bitStore) size() int { return 1 }

func (s *bitStore) load(int, int) (value.Value, error) {
	raw := (s.load64() >> s.offset) & s.mask
	switch {
	case s.kind == value.KindBool:
		return value.Bool(raw != 0), nil
	case s.kind.IsSigned():
		n := int64(raw)
		if s.width < 64 && raw&(uint64(1)<<(s.width-1)) != 0 {
			n = int64(raw | ^s.mask)
		}
		return value.Convert(value.Int64(n), s.kind)
	}
	return value.Convert(value.Uint64(raw), s.kind)
}

func (s *bitStore) store(_ int, v value.Value) error {
	raw, err := s.encode(v)
	if err != nil {
		return err
	}
	field := s.mask << s.offset
	for {
		old := s.load64()
		next := old&^field | raw<<s.offset
		if s.cas64(old, next) {
			return nil
		}
	}
}

// encode checks that v fits the field and returns its masked bits.
func (s *bitStore) encode(v value.Value) (uint64, error) {
	reject := &ValidationError{Expression: s.expression(), Value: v}
	switch {
	case s.kind == value.KindBool:
		b, err := value.As[bool](v)
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case s.kind.IsSigned():
		w, err := value.Convert(v, value.KindInt64)
		if err != nil {
			return 0, reject
		}
		n, _ := value.As[int64](w)
		if s.width < 64 {
			lo := -(int64(1) << (s.width - 1))
			hi := int64(1)<<(s.width-1) - 1
			if n < lo || n > hi {
				return 0, reject
			}
		}
		return uint64(n) & s.mask, nil
	}
	w, err := value.Convert(v, value.KindUint64)
	if err != nil {
		return 0, reject
	}
	u, _ := value.As[uint64](w)
	if u > s.mask {
		return 0, reject
	}
	return u, nil
}

// validate reports a width violation before any lock is taken.
func (s *bitStore) validate(v value.Value) error {
	_, err := s.encode(v)
	return err
}

func (s *bitStore) resize(n int) error {
	if n == 1 {
		return nil
	}
	return fmt.Errorf("%w: bit field cannot be resized", ErrSizeOutOfRange)
}

func (s *bitStore) external() bool { return false }
