package remote_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpmctl/paramtree/pkg/constraint"
	"github.com/bpmctl/paramtree/pkg/dispatch"
	"github.com/bpmctl/paramtree/pkg/remote"
	"github.com/bpmctl/paramtree/pkg/transport"
	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
)

type bpmServer struct {
	tree   *tree.Tree
	gain   tree.Node
	resets atomic.Int32
	server *remote.Server
}

func startBPM(t *testing.T, cfg remote.ServerConfig) *bpmServer {
	t.Helper()
	disp := dispatch.New(dispatch.Config{}, nil)
	t.Cleanup(disp.Stop)

	b := &bpmServer{tree: tree.New(tree.WithEmitter(disp))}
	bpm, err := tree.AddDir(b.tree.Root(), "bpm")
	require.NoError(t, err)
	b.gain, err = tree.AddValue(bpm, "gain", int32(0),
		tree.WithConstraint(constraint.Range(constraint.Val[int32](-80), constraint.Val[int32](0))))
	require.NoError(t, err)
	_, err = tree.AddValueArray(bpm, "offsets", []float64{0, 0, 0, 0})
	require.NoError(t, err)
	modes, err := tree.NewEnumDomain(
		tree.EnumEntry{Name: "idle", Value: 0},
		tree.EnumEntry{Name: "turn-by-turn", Value: 1},
	)
	require.NoError(t, err)
	_, err = tree.AddValue(bpm, "mode", int32(0), tree.WithEnum(modes))
	require.NoError(t, err)
	_, err = tree.AddExec(bpm, "reset", func() error {
		b.resets.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = tree.AddValue(bpm, "serial", "BPM-0042", tree.Hidden())
	require.NoError(t, err)

	cfg.Address = "127.0.0.1:0"
	if cfg.Name == "" {
		cfg.Name = "bpm-test"
	}
	b.server = remote.NewServer(bpm, disp, cfg, nil)
	require.NoError(t, b.server.Start(context.Background()))
	t.Cleanup(func() { b.server.Stop() })
	return b
}

func dialBPM(t *testing.T, b *bpmServer, cfg remote.ClientConfig) *remote.Client {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test-client"
	}
	cfg.DisableKeepAlive = true
	c, err := remote.Dial(context.Background(), b.server.Addr().String(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// mountBPM mounts the exported tree under /remote of a fresh local tree.
func mountBPM(t *testing.T, b *bpmServer) (*tree.Tree, *dispatch.Dispatcher) {
	t.Helper()
	disp := dispatch.New(dispatch.Config{}, nil)
	t.Cleanup(disp.Stop)
	local := tree.New(tree.WithEmitter(disp))

	c := dialBPM(t, b, remote.ClientConfig{})
	_, err := tree.Mount(local.Root(), "remote", remote.NewStructure(c))
	require.NoError(t, err)
	return local, disp
}

func TestMountedGainScenario(t *testing.T) {
	b := startBPM(t, remote.ServerConfig{})
	local, disp := mountBPM(t, b)

	gain, err := local.Lookup("/remote/gain")
	require.NoError(t, err)

	got := make(chan *tree.Notification, 8)
	id, err := disp.Connect(func(n *tree.Notification) error {
		got <- n
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, gain.Subscribe(id))

	require.NoError(t, tree.Set(gain, int32(-10)))
	v, err := tree.Get[int32](b.gain)
	require.NoError(t, err)
	assert.Equal(t, int32(-10), v, "write reached the server tree")

	select {
	case n := <-got:
		assert.Equal(t, tree.ValueChanged, n.Kind)
		path, err := n.Node.Path()
		require.NoError(t, err)
		assert.Equal(t, tree.Path{"remote", "gain"}, path)
		x, err := value.As[int32](n.Payload)
		require.NoError(t, err)
		assert.Equal(t, int32(-10), x)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification for remote write")
	}

	err = tree.Set(gain, int32(5))
	require.ErrorIs(t, err, tree.ErrValidationFailed)
	var ve *tree.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "range(-80, 0)", ve.Expression)
	assert.Equal(t, "5", ve.Value.String())

	v, err = tree.Get[int32](gain)
	require.NoError(t, err)
	assert.Equal(t, int32(-10), v)

	select {
	case n := <-got:
		t.Fatalf("rejected write notified: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, gain.Unsubscribe(id))
}

func TestConcurrentSubscribersKeepRemoteSubscription(t *testing.T) {
	b := startBPM(t, remote.ServerConfig{})
	local, disp := mountBPM(t, b)

	gain, err := local.Lookup("/remote/gain")
	require.NoError(t, err)

	got := make(chan *tree.Notification, 64)
	const subscribers = 8
	ids := make([]tree.ClientID, subscribers)
	for i := range ids {
		ids[i], err = disp.Connect(func(n *tree.Notification) error {
			select {
			case got <- n:
			default:
			}
			return nil
		})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, subscribers)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if err := gain.Subscribe(id); err != nil {
					errs <- err
					return
				}
				if err := gain.Unsubscribe(id); err != nil {
					errs <- err
					return
				}
			}
			errs <- gain.Subscribe(id)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, tree.Set(b.gain, int32(-3)))
	select {
	case n := <-got:
		assert.Equal(t, tree.ValueChanged, n.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("remote subscription lost while local subscribers remain")
	}

	for _, id := range ids {
		require.NoError(t, gain.Unsubscribe(id))
	}
}

func TestMountedStructure(t *testing.T) {
	b := startBPM(t, remote.ServerConfig{})
	local, _ := mountBPM(t, b)

	mount, err := local.Lookup("/remote")
	require.NoError(t, err)
	children, err := mount.Children()
	require.NoError(t, err)
	var names []string
	for _, c := range children {
		name, err := c.Name()
		require.NoError(t, err)
		names = append(names, name)
	}
	assert.Equal(t, []string{"gain", "offsets", "mode", "reset"}, names)

	count, err := mount.ChildCount()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	serial, err := local.Lookup("/remote/serial")
	require.NoError(t, err, "hidden children are navigable")
	s, err := tree.Get[string](serial)
	require.NoError(t, err)
	assert.Equal(t, "BPM-0042", s)

	_, err = local.Lookup("/remote/missing")
	assert.ErrorIs(t, err, tree.ErrNotFound)

	mode, err := local.Lookup("/remote/mode")
	require.NoError(t, err)
	info, err := mode.Info()
	require.NoError(t, err)
	assert.Equal(t, value.KindInt32, info.Kind)
	require.NotNil(t, info.Domain)
	assert.Equal(t, []tree.EnumEntry{{Name: "idle", Value: 0}, {Name: "turn-by-turn", Value: 1}}, info.Domain.Entries())

	reset, err := local.Lookup("/remote/reset")
	require.NoError(t, err)
	require.NoError(t, reset.Execute())
	require.NoError(t, reset.Execute())
	assert.Equal(t, int32(2), b.resets.Load())
}

func TestMountedArray(t *testing.T) {
	b := startBPM(t, remote.ServerConfig{})
	local, _ := mountBPM(t, b)

	offsets, err := local.Lookup("/remote/offsets")
	require.NoError(t, err)
	require.NoError(t, offsets.SetRange(1, value.ArrayOf([]float64{0.5, -0.25})))

	v, err := offsets.GetRange(0, -1)
	require.NoError(t, err)
	xs, err := value.AsArray[float64](v)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, -0.25, 0}, xs)

	require.NoError(t, offsets.Resize(6))
	size, err := offsets.Size()
	require.NoError(t, err)
	assert.Equal(t, 6, size)

	_, err = offsets.GetRange(5, 3)
	assert.ErrorIs(t, err, tree.ErrSizeOutOfRange)
}

func TestClientOperations(t *testing.T) {
	b := startBPM(t, remote.ServerConfig{Name: "bpm-07"})
	c := dialBPM(t, b, remote.ClientConfig{})
	ctx := context.Background()

	assert.Equal(t, "bpm-07", c.ServerName())

	names, err := c.Nodes(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gain", "offsets", "mode", "reset"}, names)

	leaf, err := c.IsLeaf(ctx, tree.Path{"gain"})
	require.NoError(t, err)
	assert.True(t, leaf)

	kind, array, err := c.ValueType(ctx, tree.Path{"offsets"})
	require.NoError(t, err)
	assert.Equal(t, value.KindFloat64, kind)
	assert.True(t, array)

	expr, err := c.ValidatorExpression(ctx, tree.Path{"gain"})
	require.NoError(t, err)
	assert.Equal(t, "range(-80, 0)", expr)

	require.NoError(t, c.SetValue(ctx, tree.Path{"gain"}, 0, value.Int32(-3)))
	v, err := c.GetValue(ctx, tree.Path{"gain"}, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "-3", v.String())

	err = c.SetValue(ctx, tree.Path{"gain"}, 0, value.String("loud"))
	assert.ErrorIs(t, err, tree.ErrKindMismatch)

	err = c.Execute(ctx, tree.Path{"gain"})
	assert.ErrorIs(t, err, tree.ErrNotExecutable)

	_, err = c.Name(ctx, tree.Path{"nope"})
	assert.ErrorIs(t, err, tree.ErrNotFound)
}

func TestPreSharedKey(t *testing.T) {
	psk := []byte("correct horse battery staple")
	b := startBPM(t, remote.ServerConfig{PSK: psk})
	addr := b.server.Addr().String()
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		c := dialBPM(t, b, remote.ClientConfig{PSK: psk})
		_, err := c.Name(ctx, tree.Path{"gain"})
		assert.NoError(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := remote.Dial(ctx, addr, remote.ClientConfig{Name: "intruder", PSK: []byte("guess"), DisableKeepAlive: true}, nil)
		assert.ErrorIs(t, err, remote.ErrNotAuthorized)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := remote.Dial(ctx, addr, remote.ClientConfig{Name: "anon", DisableKeepAlive: true}, nil)
		assert.ErrorIs(t, err, remote.ErrNotAuthorized)
	})
}

func TestRateLimit(t *testing.T) {
	b := startBPM(t, remote.ServerConfig{RateLimit: 1, Burst: 2})
	c := dialBPM(t, b, remote.ClientConfig{})
	ctx := context.Background()

	var busy int
	for range 5 {
		if _, err := c.Size(ctx, tree.Path{"offsets"}); errors.Is(err, remote.ErrBusy) {
			busy++
		} else {
			require.NoError(t, err)
		}
	}
	assert.GreaterOrEqual(t, busy, 2)
}

func TestServerGone(t *testing.T) {
	b := startBPM(t, remote.ServerConfig{})
	c := dialBPM(t, b, remote.ClientConfig{})

	require.NoError(t, b.server.Stop())
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the server going away")
	}

	_, err := c.Name(context.Background(), tree.Path{"gain"})
	assert.ErrorIs(t, err, tree.ErrRemoteFailure)
	assert.Error(t, c.Err())
}

func TestRequestTimeout(t *testing.T) {
	silent := transport.NewServer(transport.ServerConfig{
		Address:   "127.0.0.1:0",
		OnMessage: func(*transport.ServerConn, []byte) {},
	})
	require.NoError(t, silent.Start(context.Background()))
	defer silent.Stop()

	conn, err := transport.Dial(context.Background(), silent.Addr().String(), transport.ClientConfig{})
	require.NoError(t, err)
	c := remote.NewClient(conn, remote.ClientConfig{Timeout: 50 * time.Millisecond, DisableKeepAlive: true}, nil)
	defer c.Close()

	_, err = c.Name(context.Background(), tree.Path{"gain"})
	assert.ErrorIs(t, err, tree.ErrRemoteFailure)
	assert.ErrorIs(t, err, remote.ErrTimeout)
}
