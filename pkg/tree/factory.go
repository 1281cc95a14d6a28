package tree

import (
	"fmt"

	"github.com/bpmctl/paramtree/pkg/constraint"
	"github.com/bpmctl/paramtree/pkg/value"
)

// nodeConfig collects the options of a factory call.
type nodeConfig struct {
	set, clear  Flags
	constraint  constraint.Expression
	domain      *EnumDomain
	description string
}

// Option configures a node at creation.
type Option func(*nodeConfig)

// WithConstraint attaches a validation expression checked on every write.
func WithConstraint(expr constraint.Expression) Option {
	return func(c *nodeConfig) { c.constraint = expr }
}

// WithEnum attaches a symbolic domain to an integer node.
func WithEnum(d *EnumDomain) Option {
	return func(c *nodeConfig) { c.domain = d }
}

// WithFlags sets additional flags.
func WithFlags(f Flags) Option {
	return func(c *nodeConfig) { c.set |= f }
}

// Hidden excludes the node from enumeration.
func Hidden() Option { return WithFlags(FlagHidden) }

// Persistent includes the node in saved configuration.
func Persistent() Option { return WithFlags(FlagPersistent) }

// Constant rejects every write after creation.
func Constant() Option { return WithFlags(FlagConstant) }

// Signal marks the node as an event source.
func Signal() Option { return WithFlags(FlagSignal) }

// ReadOnly clears the writable flag. The owner can still use Update.
func ReadOnly() Option {
	return func(c *nodeConfig) { c.clear |= FlagWritable }
}

// WithDescription sets a human readable description.
func WithDescription(s string) Option {
	return func(c *nodeConfig) { c.description = s }
}

func buildConfig(opts []Option) nodeConfig {
	var c nodeConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// blueprint is what a factory hands to create.
type blueprint struct {
	name     string
	nodeKind NodeKind
	kind     value.Kind
	flags    Flags
	store    storage
	proxy    Proxy
}

// create builds an entity and attaches it under parent.
func create(parent Node, s blueprint, cfg nodeConfig) (Node, error) {
	if err := checkName(s.name); err != nil {
		return Node{}, err
	}
	if parent.rel != "" {
		return Node{}, fmt.Errorf("%w: cannot add %q", ErrNotMountable, s.name)
	}
	t := parent.t
	if t == nil {
		return Node{}, ErrStaleHandle
	}
	p, err := t.lookup(parent.id)
	if err != nil {
		return Node{}, err
	}
	if p.local == nil {
		return Node{}, fmt.Errorf("%w: cannot add %q", ErrNotMountable, s.name)
	}
	if cfg.domain != nil && !s.kind.IsInteger() {
		return Node{}, fmt.Errorf("%w: enum domain needs an integer node, got %s", ErrKindMismatch, s.kind)
	}

	flags := ((s.flags | cfg.set) &^ cfg.clear).normalize()
	e := &entity{
		id:          nextNodeID(),
		name:        s.name,
		nodeKind:    s.nodeKind,
		kind:        s.kind,
		description: cfg.description,
		constraint:  cfg.constraint,
		domain:      cfg.domain,
		store:       s.store,
		proxy:       s.proxy,
		flags:       flags,
		state:       Detached,
	}
	if s.proxy == nil {
		e.local = NewLocalStructure()
	}

	t.insert(e)
	if err := attach(t, p, e); err != nil {
		t.remove(e.id)
		return Node{}, err
	}
	return Node{t: t, id: e.id}, nil
}

// AddDir adds a structural node without a value.
func AddDir(parent Node, name string, opts ...Option) (Node, error) {
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindDir,
		flags:    FlagReadable,
		store:    dirStore{},
	}, buildConfig(opts))
}

// checkInitial rejects an initial value the constraint would reject.
func checkInitial(cfg nodeConfig, v value.Value) error {
	if cfg.constraint != nil && !cfg.constraint.Evaluate(v) {
		return &ValidationError{Expression: cfg.constraint.String(), Value: v}
	}
	return nil
}

// AddValue adds a scalar node owning its value.
func AddValue[T value.Primitive](parent Node, name string, initial T, opts ...Option) (Node, error) {
	cfg := buildConfig(opts)
	v := value.Of(initial)
	if err := checkInitial(cfg, v); err != nil {
		return Node{}, err
	}
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindValue,
		kind:     v.Kind(),
		flags:    FlagReadWrite,
		store:    &valueStore{v: v},
	}, cfg)
}

// AddValueArray adds an array node owning a copy of initial.
func AddValueArray[T value.Primitive](parent Node, name string, initial []T, opts ...Option) (Node, error) {
	cfg := buildConfig(opts)
	v := value.ArrayOf(initial)
	if err := checkInitial(cfg, v); err != nil {
		return Node{}, err
	}
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindValue,
		kind:     v.Kind(),
		flags:    FlagReadWrite | FlagArray,
		store:    &valueStore{v: v},
	}, cfg)
}

// AddReference adds a scalar node over *ptr, which must outlive the node.
func AddReference[T value.Primitive](parent Node, name string, ptr *T, opts ...Option) (Node, error) {
	if ptr == nil {
		return Node{}, fmt.Errorf("%w: nil reference for %q", ErrInvalidName, name)
	}
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindReference,
		kind:     value.KindOf[T](),
		flags:    FlagReadWrite,
		store:    &refStore[T]{ptr: ptr},
	}, buildConfig(opts))
}

// AddReferenceArray adds an array node over data. The node writes through
// to data's backing array and never reallocates it.
func AddReferenceArray[T value.Primitive](parent Node, name string, data []T, opts ...Option) (Node, error) {
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindReference,
		kind:     value.KindOf[T](),
		flags:    FlagReadWrite | FlagArray,
		store:    &refStore[T]{slice: data, array: true},
	}, buildConfig(opts))
}

// AddBitField32 adds a node over width bits at offset of *word. Signed kinds
// are sign-extended on read.
func AddBitField32(parent Node, name string, word *uint32, offset, width uint, kind value.Kind, opts ...Option) (Node, error) {
	st, err := newBitStore32(word, offset, width, kind)
	if err != nil {
		return Node{}, fmt.Errorf("bit field %q: %w", name, err)
	}
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindReference,
		kind:     kind,
		flags:    FlagReadWrite,
		store:    st,
	}, buildConfig(opts))
}

// AddBitField64 is AddBitField32 for 64-bit words.
func AddBitField64(parent Node, name string, word *uint64, offset, width uint, kind value.Kind, opts ...Option) (Node, error) {
	st, err := newBitStore64(word, offset, width, kind)
	if err != nil {
		return Node{}, fmt.Errorf("bit field %q: %w", name, err)
	}
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindReference,
		kind:     kind,
		flags:    FlagReadWrite,
		store:    st,
	}, buildConfig(opts))
}

// AddFunc adds a scalar node backed by closures. Either side may be nil;
// the node is then not readable or not writable.
func AddFunc[T value.Primitive](parent Node, name string, get func() (T, error), set func(T) error, opts ...Option) (Node, error) {
	var g func() (value.Value, error)
	if get != nil {
		g = func() (value.Value, error) {
			x, err := get()
			if err != nil {
				return value.Value{}, err
			}
			return value.Of(x), nil
		}
	}
	var s func(value.Value) error
	if set != nil {
		s = func(v value.Value) error {
			x, err := value.As[T](v)
			if err != nil {
				return err
			}
			return set(x)
		}
	}
	return AddFuncValue(parent, name, value.KindOf[T](), false, g, s, opts...)
}

// AddFuncValue is the type-erased form of AddFunc and also supports arrays.
func AddFuncValue(parent Node, name string, kind value.Kind, array bool, get func() (value.Value, error), set func(value.Value) error, opts ...Option) (Node, error) {
	if !kind.IsValid() {
		return Node{}, fmt.Errorf("%w: %s", value.ErrInvalidKind, kind)
	}
	var flags Flags
	if get != nil {
		flags |= FlagReadable
	}
	if set != nil {
		flags |= FlagWritable
	}
	if array {
		flags |= FlagArray
	}
	cfg := buildConfig(opts)
	if get == nil {
		cfg.set &^= FlagReadable
	}
	if set == nil {
		cfg.set &^= FlagWritable
	}
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindFunction,
		kind:     kind,
		flags:    flags,
		store:    &funcStore{kind: kind, array: array, get: get, set: set},
	}, cfg)
}

// AddExec adds a write-only command node. Any write runs fn.
func AddExec(parent Node, name string, fn func() error, opts ...Option) (Node, error) {
	if fn == nil {
		return Node{}, fmt.Errorf("%w: nil command for %q", ErrNotExecutable, name)
	}
	cfg := buildConfig(opts)
	cfg.set &^= FlagReadable
	return create(parent, blueprint{
		name:     name,
		nodeKind: KindExec,
		kind:     value.KindBool,
		flags:    FlagWritable | FlagExecutable,
		store:    &execStore{fn: fn},
	}, cfg)
}

// Mount adds a node whose children are served by p. p is bound to the new
// node before Mount returns.
func Mount(parent Node, name string, p Proxy, opts ...Option) (Node, error) {
	if p == nil {
		return Node{}, fmt.Errorf("%w: nil proxy for %q", ErrNotMountable, name)
	}
	n, err := create(parent, blueprint{
		name:     name,
		nodeKind: KindMount,
		flags:    FlagReadable,
		store:    dirStore{},
		proxy:    p,
	}, buildConfig(opts))
	if err != nil {
		return Node{}, err
	}
	if err := p.Bind(n, n.t.emitter); err != nil {
		_ = Destroy(n)
		return Node{}, fmt.Errorf("bind %q: %w", name, err)
	}
	return n, nil
}
