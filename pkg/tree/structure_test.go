package tree_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpmctl/paramtree/pkg/constraint"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
)

func names(t *testing.T, nodes []tree.Node) []string {
	t.Helper()
	out := make([]string, len(nodes))
	for i, n := range nodes {
		name, err := n.Name()
		require.NoError(t, err)
		out[i] = name
	}
	return out
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"", "/", false},
		{"/", "/", false},
		{"bpm/gain", "/bpm/gain", false},
		{"/bpm/gain/", "/bpm/gain", false},
		{"bpm//gain", "", true},
		{"bpm/../gain", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := tree.ParsePath(tt.in)
			if tt.err {
				if err == nil {
					t.Fatalf("ParsePath(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q) error = %v", tt.in, err)
			}
			if got := p.String(); got != tt.want {
				t.Errorf("ParsePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNavigation(t *testing.T) {
	tr := tree.New()
	bpm, err := tree.AddDir(tr.Root(), "bpm")
	require.NoError(t, err)
	_, err = tree.AddValue(bpm, "gain", int32(0))
	require.NoError(t, err)
	_, err = tree.AddValue(bpm, "calib", 1.0, tree.Hidden())
	require.NoError(t, err)
	_, err = tree.AddValue(bpm, "mode", int32(0))
	require.NoError(t, err)

	kids, err := bpm.Children()
	require.NoError(t, err)
	assert.Equal(t, []string{"gain", "mode"}, names(t, kids))

	count, err := bpm.ChildCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	calib, err := bpm.Navigate("calib")
	require.NoError(t, err, "hidden children stay addressable")
	hidden, err := calib.IsHidden()
	require.NoError(t, err)
	assert.True(t, hidden)

	second, err := bpm.NavigateIndex(1)
	require.NoError(t, err)
	name, _ := second.Name()
	assert.Equal(t, "mode", name)
	_, err = bpm.NavigateIndex(2)
	assert.ErrorIs(t, err, tree.ErrNotFound)

	byPath, err := tr.Lookup("/bpm/calib")
	require.NoError(t, err)
	assert.Equal(t, calib, byPath)
	assert.Equal(t, "/bpm/calib", byPath.String())

	parent, err := calib.Parent()
	require.NoError(t, err)
	assert.Equal(t, bpm, parent)

	_, err = tr.Root().Parent()
	assert.ErrorIs(t, err, tree.ErrRootNode)

	_, err = bpm.Navigate("nope")
	assert.ErrorIs(t, err, tree.ErrNotFound)
	_, err = bpm.Navigate("a/b")
	assert.ErrorIs(t, err, tree.ErrInvalidName)

	leaf, err := bpm.IsLeaf()
	require.NoError(t, err)
	assert.False(t, leaf)
}

func TestDuplicateNames(t *testing.T) {
	tr := tree.New()
	_, err := tree.AddValue(tr.Root(), "x", int32(0))
	require.NoError(t, err)
	_, err = tree.AddValue(tr.Root(), "x", int32(0))
	assert.ErrorIs(t, err, tree.ErrDuplicateName)
	_, err = tree.AddDir(tr.Root(), "")
	assert.ErrorIs(t, err, tree.ErrInvalidName)
	assert.Equal(t, 2, tr.Len())
}

func TestDetachAttach(t *testing.T) {
	rec := newRecorder(1)
	tr := tree.New(tree.WithEmitter(rec))
	a, err := tree.AddDir(tr.Root(), "a")
	require.NoError(t, err)
	b, err := tree.AddDir(tr.Root(), "b")
	require.NoError(t, err)
	x, err := tree.AddValue(a, "x", int32(7))
	require.NoError(t, err)
	require.NoError(t, a.Subscribe(1))
	require.NoError(t, b.Subscribe(1))

	require.NoError(t, tree.Detach(x))
	assert.Equal(t, tree.Detached, x.State())
	_, err = a.Navigate("x")
	assert.ErrorIs(t, err, tree.ErrNotFound)

	got, err := tree.Get[int32](x)
	require.NoError(t, err, "detached nodes stay usable")
	assert.Equal(t, int32(7), got)
	assert.ErrorIs(t, tree.Detach(x), tree.ErrNotAttached)

	require.NoError(t, tree.Attach(b, x))
	assert.Equal(t, tree.Attached, x.State())
	assert.Equal(t, "/b/x", x.String())
	assert.ErrorIs(t, tree.Attach(a, x), tree.ErrNotDetached)

	evs := rec.events(1)
	require.Len(t, evs, 2)
	assert.Equal(t, tree.StructureChanged, evs[0].Kind)
	assert.Equal(t, a, evs[0].Node)
	assert.Equal(t, b, evs[1].Node)
	assert.Equal(t, "x", evs[1].Payload.String())

	assert.ErrorIs(t, tree.Detach(tr.Root()), tree.ErrRootNode)
	assert.ErrorIs(t, tree.Destroy(tr.Root()), tree.ErrRootNode)
}

func TestAttachCycle(t *testing.T) {
	tr := tree.New()
	a, err := tree.AddDir(tr.Root(), "a")
	require.NoError(t, err)
	b, err := tree.AddDir(a, "b")
	require.NoError(t, err)

	require.NoError(t, tree.Detach(a))
	assert.ErrorIs(t, tree.Attach(b, a), tree.ErrCycle)
	require.NoError(t, tree.Attach(tr.Root(), a))
}

func TestAdoptAndMerge(t *testing.T) {
	tr := tree.New()
	plugin, err := tree.AddDir(tr.Root(), "plugin")
	require.NoError(t, err)
	mount, err := tree.AddDir(tr.Root(), "devices")
	require.NoError(t, err)

	adc, err := tree.AddDir(plugin, "adc")
	require.NoError(t, err)
	_, err = tree.AddValue(adc, "rate", uint32(100))
	require.NoError(t, err)
	_, err = tree.AddValue(plugin, "temp", 20.0)
	require.NoError(t, err)

	require.NoError(t, tree.Adopt(plugin, mount))
	kids, _ := mount.Children()
	assert.Equal(t, []string{"adc", "temp"}, names(t, kids))
	leaf, _ := plugin.IsLeaf()
	assert.True(t, leaf)

	rate, err := tr.Lookup("devices/adc/rate")
	require.NoError(t, err, "grandchildren move along")
	assert.Equal(t, "/devices/adc/rate", rate.String())

	_, err = tree.AddValue(plugin, "temp", 0.0)
	require.NoError(t, err)
	_, err = tree.AddValue(plugin, "fan", true)
	require.NoError(t, err)

	assert.ErrorIs(t, tree.Adopt(plugin, mount), tree.ErrDuplicateName)
	count, _ := plugin.ChildCount()
	assert.Equal(t, 2, count, "failed adopt moves nothing")

	skipped, err := tree.Merge(plugin, mount)
	require.NoError(t, err)
	assert.Equal(t, []string{"temp"}, skipped)
	kids, _ = plugin.Children()
	assert.Equal(t, []string{"temp"}, names(t, kids))
	kids, _ = mount.Children()
	assert.Equal(t, []string{"adc", "temp", "fan"}, names(t, kids))

	assert.ErrorIs(t, tree.Adopt(mount, adc), tree.ErrCycle)
}

func TestInfoAndDump(t *testing.T) {
	tr := tree.New()
	bpm, err := tree.AddDir(tr.Root(), "bpm")
	require.NoError(t, err)
	_, err = tree.AddValue(bpm, "gain", int32(-10),
		tree.WithConstraint(constraint.Range(constraint.Val[int32](-80), constraint.Val[int32](0))),
		tree.WithDescription("front-end gain in dB"), tree.Persistent())
	require.NoError(t, err)
	mode := int32(1)
	_, err = tree.AddReference(bpm, "mode", &mode, tree.WithEnum(tree.Enum("AUTO", "MANUAL")))
	require.NoError(t, err)
	_, err = tree.AddValue(bpm, "secret", "x", tree.Hidden())
	require.NoError(t, err)
	_, err = tree.AddExec(bpm, "reset", func() error { return nil })
	require.NoError(t, err)

	gain, err := bpm.Navigate("gain")
	require.NoError(t, err)
	info, err := gain.Info()
	require.NoError(t, err)
	assert.Equal(t, tree.Info{
		Name:        "gain",
		NodeKind:    tree.KindValue,
		Kind:        value.KindInt32,
		Flags:       tree.FlagReadWrite | tree.FlagPersistent,
		Size:        1,
		Constraint:  "range(-80, 0)",
		Description: "front-end gain in dB",
	}, info)

	var buf bytes.Buffer
	require.NoError(t, bpm.Dump(&buf, -1, tree.DumpValues|tree.DumpNodeFlags|tree.DumpConstraints))
	assert.Equal(t, "bpm/ [dir R]\n"+
		"  gain [value i32 RWP] = -10 range(-80, 0)\n"+
		"  mode [reference i32 RW] = 1 enum{AUTO=0, MANUAL=1}\n"+
		"  reset [exec bool WX]\n", buf.String())

	buf.Reset()
	require.NoError(t, tr.Root().Dump(&buf, 1, tree.DumpHidden))
	assert.Equal(t, "root/\n  bpm/\n", buf.String())

	buf.Reset()
	require.NoError(t, bpm.Dump(&buf, 1, tree.DumpHidden))
	assert.Contains(t, buf.String(), "  secret\n")
}

func TestFlagsString(t *testing.T) {
	assert.Equal(t, "-", tree.Flags(0).String())
	assert.Equal(t, "RWAPCXHS", (tree.FlagReadWrite | tree.FlagArray | tree.FlagPersistent |
		tree.FlagConstant | tree.FlagExecutable | tree.FlagHidden | tree.FlagSignal).String())
	assert.False(t, (tree.FlagReadWrite | tree.FlagConstant).Writable())
}
