package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpmctl/paramtree/pkg/dispatch"
	"github.com/bpmctl/paramtree/pkg/persistence"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
)

func newInstrument(t *testing.T) (*tree.Tree, *instrument) {
	t.Helper()
	disp := dispatch.New(dispatch.Config{}, nil)
	t.Cleanup(disp.Stop)
	tr := tree.New(tree.WithEmitter(disp))
	inst, err := buildInstrument(tr.Root(), "BPM-0007")
	require.NoError(t, err)
	return tr, inst
}

func TestInstrumentLayout(t *testing.T) {
	tr, inst := newInstrument(t)

	names := func(path string) []string {
		n, err := tr.Lookup(path)
		require.NoError(t, err)
		children, err := n.Children()
		require.NoError(t, err)
		var out []string
		for _, c := range children {
			name, err := c.Name()
			require.NoError(t, err)
			out = append(out, name)
		}
		return out
	}
	assert.Equal(t, []string{"firmware", "frontend", "acquisition", "control", "position", "temperature", "reset"}, names("/bpm"))
	assert.Equal(t, []string{"enable", "pll_locked", "channels", "trim"}, names("/bpm/control"))

	serial, err := tr.Lookup("/bpm/serial")
	require.NoError(t, err, "hidden nodes stay addressable")
	s, err := tree.Get[string](serial)
	require.NoError(t, err)
	assert.Equal(t, "BPM-0007", s)
	assert.ErrorIs(t, tree.Set(serial, "other"), tree.ErrNotWritable)

	nodes, err := inst.root.PersistentNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 8)
}

func TestInstrumentConstraints(t *testing.T) {
	tr, inst := newInstrument(t)

	assert.ErrorIs(t, tree.Set(inst.gain, int32(3)), tree.ErrValidationFailed)
	require.NoError(t, tree.Set(inst.gain, int32(-80)))

	att, err := tr.Lookup("/bpm/frontend/attenuation")
	require.NoError(t, err)
	assert.ErrorIs(t, tree.Set(att, uint32(7)), tree.ErrValidationFailed)
	require.NoError(t, tree.Set(att, uint32(12)))

	assert.ErrorIs(t, tree.Set(inst.decimation, uint32(0)), tree.ErrValidationFailed)
	assert.ErrorIs(t, tree.SetArray(inst.offsets, 2, []float64{7.5}), tree.ErrValidationFailed)

	require.NoError(t, inst.mode.Set(value.String("turn-by-turn")))
	mode, err := tree.Get[int32](inst.mode)
	require.NoError(t, err)
	assert.Equal(t, int32(1), mode)
	assert.ErrorIs(t, inst.mode.Set(value.String("burst")), tree.ErrValidationFailed)

	assert.ErrorIs(t, tree.Set(inst.x, 1.0), tree.ErrNotWritable)
}

func TestInstrumentControlRegister(t *testing.T) {
	tr, inst := newInstrument(t)

	set := func(path string, v value.Value) {
		n, err := tr.Lookup(path)
		require.NoError(t, err)
		require.NoError(t, n.Set(v))
	}
	set("/bpm/control/enable", value.Bool(true))
	set("/bpm/control/channels", value.Uint32(0xA))
	set("/bpm/control/trim", value.Int32(-3))

	reg, err := tr.Lookup("/bpm/control/register")
	require.NoError(t, err)
	got, err := tree.Get[uint32](reg)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3D<<8|0xA<<4|1), got)

	trim, err := tr.Lookup("/bpm/control/trim")
	require.NoError(t, err)
	x, err := tree.Get[int32](trim)
	require.NoError(t, err)
	assert.Equal(t, int32(-3), x)

	assert.ErrorIs(t, tree.Set(inst.pllLocked, true), tree.ErrNotWritable)
	require.NoError(t, inst.pllLocked.Update(value.Bool(true)))
	assert.Equal(t, uint32(1<<1), inst.control&(1<<1))
}

func TestInstrumentCommands(t *testing.T) {
	tr, inst := newInstrument(t)

	trigger, err := tr.Lookup("/bpm/acquisition/trigger")
	require.NoError(t, err)
	require.NoError(t, trigger.Execute())
	require.NoError(t, trigger.Execute())
	n, err := tree.Get[uint64](inst.triggers)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	require.NoError(t, tree.Set(inst.gain, int32(-60)))
	require.NoError(t, inst.offsets.Resize(6))
	require.NoError(t, tree.Set(inst.mode, int32(2)))

	reset, err := tr.Lookup("/bpm/reset")
	require.NoError(t, err)
	require.NoError(t, reset.Execute())

	gain, err := tree.Get[int32](inst.gain)
	require.NoError(t, err)
	assert.Equal(t, defaultGain, gain)
	offsets, err := tree.GetArray[float64](inst.offsets, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, defaultOffsets, offsets)
}

func TestSimulationStep(t *testing.T) {
	_, inst := newInstrument(t)

	var history []float64
	for turn := 1; turn <= historyLen+4; turn++ {
		require.NoError(t, inst.step(float64(turn), &history))
	}
	assert.Len(t, history, historyLen)

	x, err := tree.Get[float64](inst.x)
	require.NoError(t, err)
	buf, err := tree.GetArray[float64](inst.history, 0, -1)
	require.NoError(t, err)
	require.Len(t, buf, historyLen)
	assert.Equal(t, x, buf[historyLen-1], "newest position is last")

	sum, err := tree.Get[float64](inst.sum)
	require.NoError(t, err)
	assert.InDelta(t, 100, sum, 1, "gain -20 dB scales the sum by 0.1")
}

func TestRunSimulationIdle(t *testing.T) {
	_, inst := newInstrument(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, runSimulation(ctx, inst, 5*time.Millisecond, slog.Default()))

	locked, err := tree.Get[bool](inst.pllLocked)
	require.NoError(t, err)
	assert.True(t, locked)

	x, err := tree.Get[float64](inst.x)
	require.NoError(t, err)
	assert.Zero(t, x, "idle mode leaves positions untouched")
}

func TestInstrumentPersistence(t *testing.T) {
	_, inst := newInstrument(t)
	require.NoError(t, tree.Set(inst.gain, int32(-42)))
	require.NoError(t, tree.Set(inst.mode, int32(1)))

	doc, err := persistence.Snapshot(inst.root)
	require.NoError(t, err)
	assert.Contains(t, doc.Paths(), "/frontend/gain")
	assert.NotContains(t, doc.Paths(), "/position/x")

	_, fresh := newInstrument(t)
	require.NoError(t, persistence.Apply(fresh.root, doc, nil))
	gain, err := tree.Get[int32](fresh.gain)
	require.NoError(t, err)
	assert.Equal(t, int32(-42), gain)
}
