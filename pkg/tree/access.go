package tree

import (
	"fmt"

	"github.com/bpmctl/paramtree/pkg/value"
)

// writeMode distinguishes handle writes from owner writes.
type writeMode uint8

const (
	// writeUser honours the writable flag.
	writeUser writeMode = iota

	// writeOwner bypasses the writable flag. Constant nodes still reject.
	writeOwner

	// writeReplace is writeOwner that also sets the length of an array to
	// the candidate's, in the same critical section as the store.
	writeReplace
)

// Get reads the whole value.
func (n Node) Get() (value.Value, error) { return n.read(0, -1, false) }

// GetRange reads count elements starting at pos. count < 0 reads to the end.
func (n Node) GetRange(pos, count int) (value.Value, error) { return n.read(pos, count, false) }

// Set writes v. For arrays v is written at position 0 and may be shorter
// than the node.
func (n Node) Set(v value.Value) error { return n.write(0, v, writeUser) }

// SetRange writes the elements of v starting at pos. A scalar v writes one
// element.
func (n Node) SetRange(pos int, v value.Value) error { return n.write(pos, v, writeUser) }

// Update is the owner-side write used for measurements and other values
// the node's owner maintains. It ignores the writable flag but still
// validates and notifies.
func (n Node) Update(v value.Value) error { return n.write(0, v, writeOwner) }

// UpdateRange is Update at an array position.
func (n Node) UpdateRange(pos int, v value.Value) error { return n.write(pos, v, writeOwner) }

// checkRange normalizes count and checks pos/count against size. size < 0
// skips the check.
func checkRange(array bool, size, pos, count int) (int, error) {
	if !array {
		if pos != 0 || (count != 1 && count >= 0) {
			return 0, fmt.Errorf("%w: pos %d count %d on scalar", ErrSizeOutOfRange, pos, count)
		}
		return 1, nil
	}
	if size < 0 {
		return count, nil
	}
	if count < 0 {
		count = size - pos
	}
	if pos < 0 || count < 0 || pos+count > size {
		return 0, fmt.Errorf("%w: pos %d count %d size %d", ErrSizeOutOfRange, pos, count, size)
	}
	return count, nil
}

func (n Node) read(pos, count int, owner bool) (value.Value, error) {
	if n.rel != "" {
		p, rel, err := n.below()
		if err != nil {
			return value.Value{}, err
		}
		return p.Get(rel, pos, count)
	}
	e, err := n.entity()
	if err != nil {
		return value.Value{}, err
	}
	flags, st := e.snapshot()
	switch {
	case st == Destroyed:
		return value.Value{}, ErrStaleHandle
	case e.nodeKind == KindDir || e.nodeKind == KindMount || e.nodeKind == KindExec:
		return value.Value{}, fmt.Errorf("%w: %s is a %s node", ErrNotReadable, e.name, e.nodeKind)
	case !owner && !flags.Readable():
		return value.Value{}, fmt.Errorf("%w: %s", ErrNotReadable, e.name)
	}

	if e.store.external() {
		if count, err = checkRange(flags.Array(), e.store.size(), pos, count); err != nil {
			return value.Value{}, err
		}
		return e.store.load(pos, count)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Destroyed {
		return value.Value{}, ErrStaleHandle
	}
	if count, err = checkRange(flags.Array(), e.store.size(), pos, count); err != nil {
		return value.Value{}, err
	}
	return e.store.load(pos, count)
}

// validator is implemented by storages with their own admissible range.
type validator interface {
	validate(v value.Value) error
}

func (n Node) write(pos int, v value.Value, mode writeMode) error {
	if n.rel != "" {
		p, rel, err := n.below()
		if err != nil {
			return err
		}
		return p.Set(rel, pos, v)
	}
	e, err := n.entity()
	if err != nil {
		return err
	}

	flags, st := e.snapshot()
	switch {
	case st == Destroyed:
		return ErrStaleHandle
	case e.nodeKind == KindDir || e.nodeKind == KindMount:
		return fmt.Errorf("%w: %s is a %s node", ErrNotWritable, e.name, e.nodeKind)
	case flags.Constant():
		return fmt.Errorf("%w: %s is constant", ErrNotWritable, e.name)
	case mode == writeUser && !flags.Writable():
		return fmt.Errorf("%w: %s", ErrNotWritable, e.name)
	case e.nodeKind == KindExec:
		return e.store.store(0, v)
	}

	cand, err := e.coerce(v)
	if err != nil {
		return err
	}
	if !flags.Array() && (pos != 0 || cand.IsArray()) {
		return fmt.Errorf("%w: array write to scalar %s", ErrKindMismatch, e.name)
	}

	// Validation may resolve bounds on other nodes, so no lock is held.
	if e.constraint != nil && !e.constraint.Evaluate(cand) {
		return &ValidationError{Expression: e.constraint.String(), Value: v}
	}
	if vd, ok := e.store.(validator); ok {
		if err := vd.validate(cand); err != nil {
			return err
		}
	}

	if e.store.external() {
		if _, err := checkRange(flags.Array(), e.store.size(), pos, cand.Size()); err != nil {
			return err
		}
		if err := e.store.store(pos, cand); err != nil {
			return err
		}
	}

	e.mu.Lock()
	if e.state == Destroyed {
		e.mu.Unlock()
		return ErrStaleHandle
	}
	if !e.store.external() {
		if mode == writeReplace && flags.Array() && cand.IsArray() && e.store.size() != cand.Size() {
			if err := e.store.resize(cand.Size()); err != nil {
				e.mu.Unlock()
				return err
			}
		}
		if _, err := checkRange(flags.Array(), e.store.size(), pos, cand.Size()); err != nil {
			e.mu.Unlock()
			return err
		}
		if err := e.store.store(pos, cand); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	subs := e.subscribers()
	e.mu.Unlock()

	n.t.emit(e, subs, &Notification{
		Node:    n,
		Kind:    ValueChanged,
		Payload: cand,
		Index:   pos,
		Time:    n.t.now(),
	})
	return nil
}

// coerce converts a candidate to the node kind. Strings are translated
// through the enum domain or parsed as bools; bools are rendered for string
// nodes. Everything else must match exactly.
func (e *entity) coerce(v value.Value) (value.Value, error) {
	if !v.IsValid() {
		return value.Value{}, fmt.Errorf("%w: invalid value", ErrKindMismatch)
	}
	if v.Kind() == e.kind {
		return v, nil
	}
	switch {
	case e.domain != nil && v.Kind() == value.KindString:
		return mapElements(v, e.kind, func(s value.Value) (value.Value, error) {
			name, _ := value.As[string](s)
			x, ok := e.domain.Value(name)
			if !ok {
				return value.Value{}, &ValidationError{Expression: e.domain.String(), Value: v}
			}
			return value.Convert(value.Int64(x), e.kind)
		})
	case e.kind == value.KindBool && v.Kind() == value.KindString:
		return mapElements(v, e.kind, func(s value.Value) (value.Value, error) {
			b, err := value.As[bool](s)
			if err != nil {
				return value.Value{}, fmt.Errorf("%w: %w", ErrKindMismatch, err)
			}
			return value.Bool(b), nil
		})
	case e.kind == value.KindString && v.Kind() == value.KindBool:
		return mapElements(v, e.kind, func(b value.Value) (value.Value, error) {
			s, _ := value.As[string](b)
			return value.String(s), nil
		})
	}
	return value.Value{}, fmt.Errorf("%w: %s written to %s node %s", ErrKindMismatch, v.Kind(), e.kind, e.name)
}

// mapElements applies f to a scalar or to every element of an array.
func mapElements(v value.Value, kind value.Kind, f func(value.Value) (value.Value, error)) (value.Value, error) {
	if !v.IsArray() {
		return f(v)
	}
	out := value.ZeroArray(kind, v.Size())
	for i := 0; i < v.Size(); i++ {
		el, _ := v.Index(i)
		m, err := f(el)
		if err != nil {
			return value.Value{}, err
		}
		if out, err = out.Splice(i, m); err != nil {
			return value.Value{}, err
		}
	}
	return out, nil
}

// Execute runs a command node.
func (n Node) Execute() error {
	if n.rel != "" {
		p, rel, err := n.below()
		if err != nil {
			return err
		}
		return p.Execute(rel)
	}
	e, err := n.live()
	if err != nil {
		return err
	}
	if e.nodeKind != KindExec {
		return fmt.Errorf("%w: %s is a %s node", ErrNotExecutable, e.name, e.nodeKind)
	}
	return e.store.store(0, value.Value{})
}

// Resize changes the element count of an array node. It needs the
// writable flag. Value nodes reallocate and zero-fill, and the result must
// satisfy the constraint; referenced storage only accepts its fixed size.
func (n Node) Resize(size int) error {
	if n.rel != "" {
		p, rel, err := n.below()
		if err != nil {
			return err
		}
		return p.Resize(rel, size)
	}
	e, err := n.entity()
	if err != nil {
		return err
	}
	flags, st := e.snapshot()
	switch {
	case st == Destroyed:
		return ErrStaleHandle
	case flags.Constant():
		return fmt.Errorf("%w: %s is constant", ErrNotWritable, e.name)
	case !flags.Writable():
		return fmt.Errorf("%w: %s", ErrNotWritable, e.name)
	case size < 0:
		return fmt.Errorf("%w: negative size %d", ErrSizeOutOfRange, size)
	}

	// Like write, the candidate is checked before the lock is taken.
	if !e.store.external() && flags.Array() && e.constraint != nil {
		cur, err := n.read(0, -1, true)
		if err != nil {
			return err
		}
		cand, err := cur.Resize(size)
		if err != nil {
			return err
		}
		if !e.constraint.Evaluate(cand) {
			return &ValidationError{Expression: e.constraint.String(), Value: cand}
		}
	}

	e.mu.Lock()
	if e.state == Destroyed {
		e.mu.Unlock()
		return ErrStaleHandle
	}
	if err := e.store.resize(size); err != nil {
		e.mu.Unlock()
		return err
	}
	var payload value.Value
	if !e.store.external() && flags.Array() {
		payload, _ = e.store.load(0, e.store.size())
	}
	subs := e.subscribers()
	e.mu.Unlock()

	if payload.IsValid() {
		n.t.emit(e, subs, &Notification{Node: n, Kind: ValueChanged, Payload: payload, Time: n.t.now()})
	}
	return nil
}

// Subscribe adds id to the node's subscribers. id must be connected to the
// tree's emitter.
func (n Node) Subscribe(id ClientID) error {
	if n.rel != "" {
		p, rel, err := n.below()
		if err != nil {
			return err
		}
		return p.Subscribe(rel, id)
	}
	e, err := n.live()
	if err != nil {
		return err
	}
	if n.t.emitter == nil || !n.t.emitter.Connected(id) {
		return fmt.Errorf("%w: client %d", ErrDisconnected, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Destroyed {
		return ErrStaleHandle
	}
	if e.subs == nil {
		e.subs = make(map[ClientID]struct{})
	}
	e.subs[id] = struct{}{}
	return nil
}

// Unsubscribe removes id from the node's subscribers.
func (n Node) Unsubscribe(id ClientID) error {
	if n.rel != "" {
		p, rel, err := n.below()
		if err != nil {
			return err
		}
		return p.Unsubscribe(rel, id)
	}
	e, err := n.live()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, id)
	return nil
}

// Subscribers returns the ids subscribed to a local node in ascending order.
func (n Node) Subscribers() ([]ClientID, error) {
	e, err := n.localEntity()
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Destroyed {
		return nil, ErrStaleHandle
	}
	return e.subscribers(), nil
}

// Get reads n as T. On enum nodes T may be string to read the symbolic
// name.
func Get[T value.Primitive](n Node) (T, error) {
	var zero T
	v, err := n.Get()
	if err != nil {
		return zero, err
	}
	if value.KindOf[T]() == value.KindString && v.Kind().IsInteger() && !v.IsArray() {
		d, err := n.Domain()
		if err != nil {
			return zero, err
		}
		if d != nil {
			x, err := value.Convert(v, value.KindInt64)
			if err != nil {
				return zero, err
			}
			i, _ := value.As[int64](x)
			if name, ok := d.Name(i); ok {
				return any(name).(T), nil
			}
			return any(x.String()).(T), nil
		}
	}
	return value.As[T](v)
}

// Set writes x to n.
func Set[T value.Primitive](n Node, x T) error {
	return n.Set(value.Of(x))
}

// GetArray reads count elements at pos as []T. count < 0 reads to the end.
func GetArray[T value.Primitive](n Node, pos, count int) ([]T, error) {
	v, err := n.GetRange(pos, count)
	if err != nil {
		return nil, err
	}
	return value.AsArray[T](v)
}

// SetArray writes xs to n starting at pos.
func SetArray[T value.Primitive](n Node, pos int, xs []T) error {
	return n.SetRange(pos, value.ArrayOf(xs))
}
