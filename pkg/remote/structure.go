package remote

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
	"github.com/bpmctl/paramtree/pkg/wire"
)

// Structure serves the children of a mount point from a remote server.
// Every query is forwarded; nothing is cached. Local subscribers of a
// remote node share one remote subscription.
type Structure struct {
	client *Client

	// subMu orders remote subscribe and unsubscribe requests with the
	// local bookkeeping in subs. It is taken before mu.
	subMu sync.Mutex

	mu      sync.Mutex
	anchor  tree.Node
	emitter tree.Emitter
	subs    map[string]*remoteSub
}

type remoteSub struct {
	path tree.Path
	ids  map[tree.ClientID]struct{}
}

var _ tree.Proxy = (*Structure)(nil)

// NewStructure returns a proxy backed by c. Mount it with tree.Mount;
// destroying the mount closes c.
func NewStructure(c *Client) *Structure {
	return &Structure{
		client: c,
		subs:   make(map[string]*remoteSub),
	}
}

// Bind routes notifications from the server into the local tree.
func (s *Structure) Bind(anchor tree.Node, e tree.Emitter) error {
	s.mu.Lock()
	s.anchor = anchor
	s.emitter = e
	s.mu.Unlock()
	s.client.SetNotificationHandler(s.notify)
	return nil
}

// Close releases the connection.
func (s *Structure) Close() error {
	return s.client.Close()
}

func (s *Structure) ctx() context.Context {
	return context.Background()
}

// Names returns the visible child names of rel.
func (s *Structure) Names(rel tree.Path) ([]string, error) {
	return s.client.Nodes(s.ctx(), rel)
}

// Count returns the number of visible children of rel.
func (s *Structure) Count(rel tree.Path) (int, error) {
	return s.client.NodeCount(s.ctx(), rel)
}

// Has reports whether rel has a child called name, hidden ones included.
func (s *Structure) Has(rel tree.Path, name string) (bool, error) {
	_, err := s.client.Name(s.ctx(), rel.Join(name))
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	}
	return false, err
}

// IsLeaf reports whether rel has no children.
func (s *Structure) IsLeaf(rel tree.Path) (bool, error) {
	return s.client.IsLeaf(s.ctx(), rel)
}

// Info returns the metadata of rel.
func (s *Structure) Info(rel tree.Path) (tree.Info, error) {
	return s.client.Info(s.ctx(), rel)
}

// Get reads count elements of rel at pos.
func (s *Structure) Get(rel tree.Path, pos, count int) (value.Value, error) {
	return s.client.GetValue(s.ctx(), rel, pos, count)
}

// Set writes v to rel at pos.
func (s *Structure) Set(rel tree.Path, pos int, v value.Value) error {
	return s.client.SetValue(s.ctx(), rel, pos, v)
}

// Execute runs the command node rel.
func (s *Structure) Execute(rel tree.Path) error {
	return s.client.Execute(s.ctx(), rel)
}

// Resize sets the length of the array node rel.
func (s *Structure) Resize(rel tree.Path, n int) error {
	return s.client.Resize(s.ctx(), rel, n)
}

// Subscribe adds a local subscriber to rel. The first subscriber of a path
// opens the remote subscription.
func (s *Structure) Subscribe(rel tree.Path, id tree.ClientID) error {
	s.mu.Lock()
	e := s.emitter
	s.mu.Unlock()
	if e == nil || !e.Connected(id) {
		return tree.ErrDisconnected
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	key := rel.String()
	s.mu.Lock()
	sub, ok := s.subs[key]
	if ok {
		sub.ids[id] = struct{}{}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.client.Subscribe(s.ctx(), rel); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[key] = &remoteSub{
		path: slices.Clone(rel),
		ids:  map[tree.ClientID]struct{}{id: {}},
	}
	return nil
}

// Unsubscribe removes a local subscriber from rel. The last one closes the
// remote subscription.
func (s *Structure) Unsubscribe(rel tree.Path, id tree.ClientID) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	key := rel.String()
	s.mu.Lock()
	sub, ok := s.subs[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(sub.ids, id)
	last := len(sub.ids) == 0
	if last {
		delete(s.subs, key)
	}
	s.mu.Unlock()

	if !last {
		return nil
	}
	return s.client.Unsubscribe(s.ctx(), rel)
}

// dropRemote closes the remote subscription of rel unless a local
// subscriber reopened it in the meantime.
func (s *Structure) dropRemote(rel tree.Path) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	key := rel.String()
	s.mu.Lock()
	_, reopened := s.subs[key]
	s.mu.Unlock()
	if reopened {
		return
	}
	if err := s.client.Unsubscribe(s.ctx(), rel); err != nil {
		s.client.logger.Debug("remote unsubscribe", "path", key, "error", err)
	}
}

// Subscribed returns the remote paths with at least one local subscriber.
func (s *Structure) Subscribed() []tree.Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := slices.Sorted(maps.Keys(s.subs))
	out := make([]tree.Path, len(keys))
	for i, k := range keys {
		out[i] = s.subs[k].path
	}
	return out
}

// notify runs on the client read loop. It must not issue requests
// synchronously.
func (s *Structure) notify(n *wire.Notification) {
	rel := tree.Path(n.Path)
	key := rel.String()

	s.mu.Lock()
	sub, ok := s.subs[key]
	e := s.emitter
	anchor := s.anchor
	var ids []tree.ClientID
	if ok {
		ids = slices.Sorted(maps.Keys(sub.ids))
	}
	s.mu.Unlock()
	if len(ids) == 0 || e == nil {
		return
	}

	v, err := n.Payload.Value()
	if err != nil {
		s.client.logger.Debug("dropping notification", "path", key, "error", err)
		return
	}
	dead := e.Emit(ids, &tree.Notification{
		Node:    anchor.At(rel),
		Kind:    tree.EventKind(n.Event),
		Payload: v,
		Index:   n.Index,
		Time:    n.Time,
	})
	if len(dead) == 0 {
		return
	}

	s.mu.Lock()
	emptied := false
	if sub, ok := s.subs[key]; ok {
		for _, id := range dead {
			delete(sub.ids, id)
		}
		if len(sub.ids) == 0 {
			delete(s.subs, key)
			emptied = true
		}
	}
	s.mu.Unlock()
	if emptied {
		go s.dropRemote(rel)
	}
}
