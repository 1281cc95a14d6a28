package persistence

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpmctl/paramtree/pkg/constraint"
	"github.com/bpmctl/paramtree/pkg/dispatch"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
)

type bpm struct {
	root     tree.Node
	gain     tree.Node
	offsets  tree.Node
	serial   tree.Node
	volatile tree.Node
}

func buildBPM(t *testing.T, tr *tree.Tree) bpm {
	t.Helper()
	dir, err := tree.AddDir(tr.Root(), "bpm")
	require.NoError(t, err)
	b := bpm{root: dir}
	b.gain, err = tree.AddValue(dir, "gain", int32(0), tree.Persistent(),
		tree.WithConstraint(constraint.Range(constraint.Val[int32](-80), constraint.Val[int32](0))))
	require.NoError(t, err)
	b.offsets, err = tree.AddValueArray(dir, "offsets", []float64{0, 0}, tree.Persistent())
	require.NoError(t, err)
	b.serial, err = tree.AddValue(dir, "serial", "unset", tree.Persistent(), tree.Hidden())
	require.NoError(t, err)
	b.volatile, err = tree.AddValue(dir, "counter", uint32(0))
	require.NoError(t, err)
	return b
}

func TestSnapshotApplyRoundTrip(t *testing.T) {
	src := buildBPM(t, tree.New())
	require.NoError(t, tree.Set(src.gain, int32(-12)))
	require.NoError(t, src.offsets.Resize(3))
	require.NoError(t, src.offsets.SetRange(0, value.ArrayOf([]float64{0.5, -1.25, 3})))
	require.NoError(t, tree.Set(src.serial, "BPM-0042"))
	require.NoError(t, tree.Set(src.volatile, uint32(99)))

	doc, err := Snapshot(src.root)
	require.NoError(t, err)
	assert.Equal(t, []string{"/gain", "/offsets", "/serial"}, doc.Paths())
	assert.Equal(t, Entry{Kind: value.KindInt32.String(), Values: []string{"-12"}}, doc.Entries["/gain"])
	assert.True(t, doc.Entries["/offsets"].Array)

	dst := buildBPM(t, tree.New())
	require.NoError(t, Apply(dst.root, doc, nil))

	gain, err := tree.Get[int32](dst.gain)
	require.NoError(t, err)
	assert.Equal(t, int32(-12), gain)

	v, err := dst.offsets.GetRange(0, -1)
	require.NoError(t, err)
	xs, err := value.AsArray[float64](v)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1.25, 3}, xs)

	serial, err := tree.Get[string](dst.serial)
	require.NoError(t, err)
	assert.Equal(t, "BPM-0042", serial)

	counter, err := tree.Get[uint32](dst.volatile)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), counter, "non-persistent node untouched")
}

func TestApplySkipsBadEntries(t *testing.T) {
	b := buildBPM(t, tree.New())
	doc := &Document{
		Version: DocumentVersion,
		Entries: map[string]Entry{
			"/gain":    {Kind: "i32", Values: []string{"12"}},
			"/serial":  {Kind: "string", Values: []string{"BPM-7"}},
			"/missing": {Kind: "i32", Values: []string{"1"}},
			"/counter": {Kind: "u32", Values: []string{"5"}},
		},
	}

	err := Apply(b.root, doc, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, tree.ErrValidationFailed)
	assert.ErrorIs(t, err, tree.ErrNotFound)
	assert.ErrorIs(t, err, tree.ErrNotPersistent)

	serial, err := tree.Get[string](b.serial)
	require.NoError(t, err)
	assert.Equal(t, "BPM-7", serial, "valid entries are still applied")
	gain, _ := tree.Get[int32](b.gain)
	assert.Equal(t, int32(0), gain)

	err = Apply(b.root, &Document{Version: DocumentVersion + 1}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSnapshotDoesNotEnterMounts(t *testing.T) {
	tr := tree.New()
	b := buildBPM(t, tr)
	_, err := tree.Mount(b.root, "peer", &stubProxy{})
	require.NoError(t, err)

	doc, err := Snapshot(tr.Root())
	require.NoError(t, err)
	for _, p := range doc.Paths() {
		assert.False(t, strings.HasPrefix(p, "/bpm/peer"), p)
	}
	assert.Contains(t, doc.Entries, "/bpm/gain")
}

func TestStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "missing.yaml"))
		doc, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "nested", "params.yaml"))
		doc := &Document{Entries: map[string]Entry{
			"/gain":    {Kind: "i32", Values: []string{"-3"}},
			"/offsets": {Kind: "f64", Array: true, Values: []string{"1", "2.5"}},
		}}
		require.NoError(t, store.Save(doc))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, DocumentVersion, got.Version)
		assert.False(t, got.SavedAt.IsZero())
		assert.Equal(t, doc.Entries, got.Entries)

		entries, err := os.ReadDir(filepath.Dir(store.Path()))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temporary files left behind")
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "params.yaml"))
		require.NoError(t, store.Save(&Document{}))
		require.NoError(t, store.Clear())
		require.NoError(t, store.Clear())
		doc, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "params.yaml")
		require.NoError(t, os.WriteFile(path, []byte("entries: [unclosed"), 0o600))
		_, err := NewStore(path).Load()
		assert.Error(t, err)
	})
}

func TestEntryValue(t *testing.T) {
	_, err := Entry{Kind: "i32", Values: []string{"1", "2"}}.Value()
	assert.ErrorIs(t, err, value.ErrOutOfRange)
	_, err = Entry{Kind: "quaternion", Values: []string{"1"}}.Value()
	assert.Error(t, err)

	v, err := Entry{Kind: "bool", Values: []string{"true"}}.Value()
	require.NoError(t, err)
	assert.True(t, value.Equal(value.Bool(true), v))
}

func TestWatcherReloadsExternalEdits(t *testing.T) {
	b := buildBPM(t, tree.New())
	store := NewStore(filepath.Join(t.TempDir(), "params.yaml"))
	doc, err := Snapshot(b.root)
	require.NoError(t, err)
	require.NoError(t, store.Save(doc))

	w := NewWatcher(store, b.root, 20*time.Millisecond, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Rewriting identical content through the store is not a change.
	require.NoError(t, store.Save(doc))

	// A second store stands in for an operator editing the file.
	doc.Entries["/gain"] = Entry{Kind: "i32", Values: []string{"-40"}}
	require.NoError(t, NewStore(store.Path()).Save(doc))

	select {
	case err := <-w.Reloads():
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("edit was not reloaded")
	}
	gain, err := tree.Get[int32](b.gain)
	require.NoError(t, err)
	assert.Equal(t, int32(-40), gain)
}

func TestAutoSaver(t *testing.T) {
	disp := dispatch.New(dispatch.Config{}, nil)
	defer disp.Stop()
	b := buildBPM(t, tree.New(tree.WithEmitter(disp)))
	store := NewStore(filepath.Join(t.TempDir(), "params.yaml"))

	saver := NewAutoSaver(b.root, disp, store, 20*time.Millisecond, nil)
	require.NoError(t, saver.Start(context.Background()))

	require.NoError(t, tree.Set(b.gain, int32(-7)))
	require.NoError(t, tree.Set(b.gain, int32(-8)))

	require.Eventually(t, func() bool {
		doc, err := store.Load()
		return err == nil && doc != nil && doc.Entries["/gain"].Values[0] == "-8"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, tree.Set(b.serial, "BPM-9"))
	saver.Stop()
	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"BPM-9"}, doc.Entries["/serial"].Values, "Stop flushes pending changes")
}

// stubProxy is an empty remote structure.
type stubProxy struct{}

func (stubProxy) Names(tree.Path) ([]string, error)          { return nil, nil }
func (stubProxy) Count(tree.Path) (int, error)                { return 0, nil }
func (stubProxy) Has(tree.Path, string) (bool, error)         { return false, nil }
func (stubProxy) IsLeaf(tree.Path) (bool, error)              { return true, nil }
func (stubProxy) Info(tree.Path) (tree.Info, error)           { return tree.Info{}, tree.ErrNotFound }
func (stubProxy) Execute(tree.Path) error                     { return tree.ErrNotExecutable }
func (stubProxy) Resize(tree.Path, int) error                 { return tree.ErrNotWritable }
func (stubProxy) Bind(tree.Node, tree.Emitter) error          { return nil }
func (stubProxy) Subscribe(tree.Path, tree.ClientID) error    { return nil }
func (stubProxy) Unsubscribe(tree.Path, tree.ClientID) error  { return nil }
func (stubProxy) Set(tree.Path, int, value.Value) error       { return tree.ErrNotWritable }
func (stubProxy) Get(tree.Path, int, int) (value.Value, error) { return value.Value{}, tree.ErrNotReadable }
