package tree_test

import (
	"sync"

	"github.com/bpmctl/paramtree/pkg/tree"
)

// recorder is a synchronous Emitter that keeps every notification per
// client.
type recorder struct {
	mu      sync.Mutex
	clients map[tree.ClientID]bool
	got     map[tree.ClientID][]*tree.Notification
}

func newRecorder(ids ...tree.ClientID) *recorder {
	r := &recorder{
		clients: make(map[tree.ClientID]bool),
		got:     make(map[tree.ClientID][]*tree.Notification),
	}
	for _, id := range ids {
		r.clients[id] = true
	}
	return r
}

func (r *recorder) Connected(id tree.ClientID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[id]
}

func (r *recorder) Emit(subs []tree.ClientID, n *tree.Notification) []tree.ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dead []tree.ClientID
	for _, id := range subs {
		if !r.clients[id] {
			dead = append(dead, id)
			continue
		}
		r.got[id] = append(r.got[id], n)
	}
	return dead
}

func (r *recorder) disconnect(id tree.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

func (r *recorder) events(id tree.ClientID) []*tree.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*tree.Notification(nil), r.got[id]...)
}
