package tree

import (
	"fmt"

	"github.com/bpmctl/paramtree/pkg/value"
)

// storage is the value strategy of a node entity. Positions and counts are
// checked by the caller; candidates already have the node's kind.
type storage interface {
	// size returns the element count, or -1 if only the backing closure
	// knows it.
	size() int
	load(pos, count int) (value.Value, error)
	store(pos int, v value.Value) error
	resize(n int) error

	// external reports that the storage synchronizes itself or calls user
	// code, so it runs without the entity lock held.
	external() bool
}

// valueStore owns its value.
type valueStore struct {
	v value.Value
}

func (s *valueStore) size() int { return s.v.Size() }

func (s *valueStore) load(pos, count int) (value.Value, error) {
	if !s.v.IsArray() {
		return s.v, nil
	}
	return s.v.Slice(pos, count)
}

func (s *valueStore) store(pos int, v value.Value) error {
	if !s.v.IsArray() {
		s.v = v
		return nil
	}
	nv, err := s.v.Splice(pos, v)
	if err != nil {
		return err
	}
	s.v = nv
	return nil
}

func (s *valueStore) resize(n int) error {
	if !s.v.IsArray() {
		if n == 1 {
			return nil
		}
		return fmt.Errorf("%w: scalar node cannot hold %d elements", ErrSizeOutOfRange, n)
	}
	nv, err := s.v.Resize(n)
	if err != nil {
		return err
	}
	s.v = nv
	return nil
}

func (s *valueStore) external() bool { return false }

// refStore views memory owned by another component. It never reallocates.
type refStore[T value.Primitive] struct {
	ptr   *T
	slice []T
	array bool
}

func (s *refStore[T]) size() int {
	if s.array {
		return len(s.slice)
	}
	return 1
}

func (s *refStore[T]) load(pos, count int) (value.Value, error) {
	if !s.array {
		return value.Of(*s.ptr), nil
	}
	return value.ArrayOf(s.slice[pos : pos+count]), nil
}

func (s *refStore[T]) store(pos int, v value.Value) error {
	if !s.array {
		x, err := value.As[T](v)
		if err != nil {
			return err
		}
		*s.ptr = x
		return nil
	}
	if !v.IsArray() {
		x, err := value.As[T](v)
		if err != nil {
			return err
		}
		s.slice[pos] = x
		return nil
	}
	xs, err := value.AsArray[T](v)
	if err != nil {
		return err
	}
	copy(s.slice[pos:], xs)
	return nil
}

func (s *refStore[T]) resize(n int) error {
	if n != s.size() {
		return fmt.Errorf("%w: referenced storage has fixed size %d", ErrSizeOutOfRange, s.size())
	}
	return nil
}

func (s *refStore[T]) external() bool { return false }

// funcStore forwards to closures. A nil side is rejected by the flag check
// before it is reached.
type funcStore struct {
	kind  value.Kind
	array bool
	get   func() (value.Value, error)
	set   func(value.Value) error
}

func (s *funcStore) size() int {
	if !s.array {
		return 1
	}
	return -1
}

func (s *funcStore) current() (value.Value, error) {
	if s.get == nil {
		return value.Value{}, ErrNotReadable
	}
	v, err := s.get()
	if err != nil {
		return value.Value{}, err
	}
	if v.Kind() != s.kind || v.IsArray() != s.array {
		return value.Value{}, fmt.Errorf("%w: getter returned %s", ErrKindMismatch, v.Kind())
	}
	return v, nil
}

func (s *funcStore) load(pos, count int) (value.Value, error) {
	v, err := s.current()
	if err != nil || !s.array {
		return v, err
	}
	if count < 0 {
		count = v.Size() - pos
	}
	return v.Slice(pos, count)
}

func (s *funcStore) store(pos int, v value.Value) error {
	if s.set == nil {
		return ErrNotWritable
	}
	if !s.array {
		return s.set(v)
	}
	if s.get == nil {
		// Write-only arrays can only be replaced as a whole.
		if pos != 0 || !v.IsArray() {
			return fmt.Errorf("%w: partial write needs a getter", ErrNotReadable)
		}
		return s.set(v)
	}
	cur, err := s.current()
	if err != nil {
		return err
	}
	if v.IsArray() && pos == 0 && v.Size() == cur.Size() {
		return s.set(v)
	}
	merged, err := cur.Splice(pos, v)
	if err != nil {
		return err
	}
	return s.set(merged)
}

func (s *funcStore) resize(n int) error {
	if !s.array && n == 1 {
		return nil
	}
	return fmt.Errorf("%w: function node cannot be resized", ErrSizeOutOfRange)
}

func (s *funcStore) external() bool { return true }

// execStore runs a command on every write.
type execStore struct {
	fn func() error
}

func (s *execStore) size() int { return 1 }

func (s *execStore) load(int, int) (value.Value, error) { return value.Value{}, ErrNotReadable }

func (s *execStore) store(int, value.Value) error { return s.fn() }

func (s *execStore) resize(n int) error {
	if n == 1 {
		return nil
	}
	return fmt.Errorf("%w: exec node cannot be resized", ErrSizeOutOfRange)
}

func (s *execStore) external() bool { return true }

// dirStore backs structural nodes.
type dirStore struct{}

func (dirStore) size() int                          { return 0 }
func (dirStore) load(int, int) (value.Value, error) { return value.Value{}, ErrNotReadable }
func (dirStore) store(int, value.Value) error       { return ErrNotWritable }
func (dirStore) resize(int) error                   { return ErrNotWritable }
func (dirStore) external() bool                     { return false }
