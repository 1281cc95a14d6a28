package main

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/bpmctl/paramtree/pkg/constraint"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
)

// historyLen is the initial length of the position history buffer.
const historyLen = 16

// Acquisition modes.
var acquisitionModes = tree.Enum("idle", "turn-by-turn", "slow-acquisition")

// Defaults restored by the reset command.
var (
	defaultGain       = int32(-20)
	defaultOffsets    = []float64{0, 0, 0, 0}
	defaultDecimation = uint32(64)
)

// instrument is the parameter tree of a simulated beam-position monitor.
type instrument struct {
	root tree.Node

	gain        tree.Node
	offsets     tree.Node
	mode        tree.Node
	decimation  tree.Node
	triggers    tree.Node
	pllLocked   tree.Node
	x, y, sum   tree.Node
	history     tree.Node
	temperature atomic.Uint64 // math.Float64bits

	// control is the front-end control register exposed as bit fields.
	control uint32
}

// buildInstrument adds the instrument below parent as a directory called
// "bpm".
func buildInstrument(parent tree.Node, serial string) (*instrument, error) {
	inst := &instrument{}
	inst.temperature.Store(math.Float64bits(31.5))

	b := &builder{}
	inst.root = b.dir(parent, "bpm")
	b.value(tree.AddValue(inst.root, "serial", serial, tree.Constant(), tree.Hidden()))
	b.value(tree.AddValue(inst.root, "firmware", "2.4.1", tree.Constant(),
		tree.WithDescription("Firmware release of the acquisition board")))

	frontend := b.dir(inst.root, "frontend")
	inst.gain = b.value(tree.AddValue(frontend, "gain", defaultGain, tree.Persistent(),
		tree.WithConstraint(constraint.Range(constraint.Val[int32](-80), constraint.Val[int32](0))),
		tree.WithDescription("Front-end gain in dB")))
	b.value(tree.AddValue(frontend, "attenuation", uint32(0), tree.Persistent(),
		tree.WithConstraint(constraint.Set(
			constraint.Val[uint32](0), constraint.Val[uint32](6),
			constraint.Val[uint32](12), constraint.Val[uint32](18)))))
	inst.offsets = b.value(tree.AddValueArray(frontend, "offsets", defaultOffsets, tree.Persistent(),
		tree.WithConstraint(constraint.Range(constraint.Val(-5.0), constraint.Val(5.0))),
		tree.WithDescription("Electrode offsets in mm")))

	acq := b.dir(inst.root, "acquisition")
	inst.mode = b.value(tree.AddValue(acq, "mode", int32(0), tree.Persistent(), tree.WithEnum(acquisitionModes)))
	inst.decimation = b.value(tree.AddValue(acq, "decimation", defaultDecimation, tree.Persistent(),
		tree.WithConstraint(constraint.And(
			constraint.Gt(constraint.Val[uint32](0)),
			constraint.Lt(constraint.Val[uint32](65537))))))
	inst.triggers = b.value(tree.AddValue(acq, "triggers", uint64(0), tree.ReadOnly()))
	b.value(tree.AddExec(acq, "trigger", inst.trigger,
		tree.WithDescription("Start one acquisition")))

	control := b.dir(inst.root, "control")
	b.value(tree.AddBitField32(control, "enable", &inst.control, 0, 1, value.KindBool, tree.Persistent()))
	inst.pllLocked = b.value(tree.AddBitField32(control, "pll_locked", &inst.control, 1, 1, value.KindBool, tree.ReadOnly()))
	b.value(tree.AddBitField32(control, "channels", &inst.control, 4, 4, value.KindUint32, tree.Persistent()))
	b.value(tree.AddBitField32(control, "trim", &inst.control, 8, 6, value.KindInt32, tree.Persistent()))
	b.value(tree.AddFunc(control, "register", func() (uint32, error) {
		return atomic.LoadUint32(&inst.control), nil
	}, nil, tree.Hidden()))

	pos := b.dir(inst.root, "position")
	inst.x = b.value(tree.AddValue(pos, "x", 0.0, tree.ReadOnly(), tree.Signal()))
	inst.y = b.value(tree.AddValue(pos, "y", 0.0, tree.ReadOnly(), tree.Signal()))
	inst.sum = b.value(tree.AddValue(pos, "sum", 0.0, tree.ReadOnly(), tree.Signal()))
	inst.history = b.value(tree.AddValueArray(pos, "history", make([]float64, historyLen), tree.ReadOnly()))

	b.value(tree.AddFunc(inst.root, "temperature", func() (float64, error) {
		return math.Float64frombits(inst.temperature.Load()), nil
	}, nil, tree.WithDescription("Board temperature in degrees Celsius")))
	b.value(tree.AddExec(inst.root, "reset", inst.reset,
		tree.WithDescription("Restore front-end and acquisition defaults")))

	if b.err != nil {
		return nil, b.err
	}
	return inst, nil
}

func (inst *instrument) trigger() error {
	n, err := tree.Get[uint64](inst.triggers)
	if err != nil {
		return err
	}
	return inst.triggers.Update(value.Of(n + 1))
}

func (inst *instrument) reset() error {
	if err := tree.Set(inst.gain, defaultGain); err != nil {
		return err
	}
	if err := inst.offsets.Resize(len(defaultOffsets)); err != nil {
		return err
	}
	if err := tree.SetArray(inst.offsets, 0, defaultOffsets); err != nil {
		return err
	}
	if err := tree.Set(inst.mode, int32(0)); err != nil {
		return err
	}
	return tree.Set(inst.decimation, defaultDecimation)
}

// builder keeps the first construction error so the tree layout reads top
// to bottom.
type builder struct {
	err error
}

func (b *builder) dir(parent tree.Node, name string) tree.Node {
	return b.value(tree.AddDir(parent, name))
}

func (b *builder) value(n tree.Node, err error) tree.Node {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("build instrument: %w", err)
	}
	return n
}
