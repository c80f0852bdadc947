// Package presence tracks which identities are connected and through how
// many connections, and reports the first-connect and last-disconnect edges
// that drive online/offline notifications.
package presence

import (
	"sort"
	"sync"
)

// Registry maps an identity to the set of its live connection IDs.
//
// An identity is present as a key if and only if it has at least one
// connection; empty sets are deleted, never left behind. Every add or remove
// computes its edge under the same lock as the mutation, so two concurrent
// connects for one identity cannot both observe "first", and two concurrent
// disconnects cannot both observe "last".
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{}
	total int
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[string]struct{})}
}

// AddConnection records connectionID for identity and reports whether it is
// the identity's only connection after the call. Adding an ID already
// present changes nothing and reports false.
func (r *Registry) AddConnection(identity, connectionID string) (wasFirst bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[identity]
	if !ok {
		set = make(map[string]struct{}, 1)
		r.conns[identity] = set
	}
	if _, dup := set[connectionID]; dup {
		return false
	}
	set[connectionID] = struct{}{}
	r.total++
	return len(set) == 1
}

// RemoveConnection forgets connectionID and reports whether identity has no
// connections left. Unknown identities and IDs are a no-op returning false;
// transport disconnect races produce these legitimately.
func (r *Registry) RemoveConnection(identity, connectionID string) (wasLast bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[identity]
	if !ok {
		return false
	}
	if _, member := set[connectionID]; !member {
		return false
	}
	delete(set, connectionID)
	r.total--
	if len(set) > 0 {
		return false
	}
	delete(r.conns, identity)
	return true
}

func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[identity]
	return ok
}

// OnlineIdentities returns the connected identities in sorted order.
func (r *Registry) OnlineIdentities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns))
	for identity := range r.conns {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) ConnectionCount(identity string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[identity])
}

func (r *Registry) TotalConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Clear drops all state. Meant for shutdown and test isolation only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = make(map[string]map[string]struct{})
	r.total = 0
}
