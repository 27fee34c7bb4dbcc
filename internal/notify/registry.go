// README: Per-role registry of live connections; process-local by contract.
package notify

import (
	"sync"

	"cookroute/internal/types"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleCook     Role = "cook"
	RoleDriver   Role = "driver"
)

// Conn is one actor's live connection. Emit must be safe to call from any
// goroutine and should fail fast rather than block on a dead peer.
type Conn interface {
	Emit(event string, payload any) error
}

// Registry maps actor ids to live connections per role. It is authoritative
// only for the current process lifetime; a multi-instance deployment needs a
// shared pub/sub behind the same interface.
type Registry struct {
	mu    sync.RWMutex
	conns map[Role]map[types.ID]Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns: map[Role]map[types.ID]Conn{
			RoleCustomer: {},
			RoleCook:     {},
			RoleDriver:   {},
		},
	}
}

// Register binds the actor's live connection, replacing any previous one.
func (r *Registry) Register(role Role, id types.ID, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.conns[role]
	if !ok {
		byID = map[types.ID]Conn{}
		r.conns[role] = byID
	}
	byID[id] = c
}

// Unregister removes the binding only if it still points at c, so a stale
// disconnect cannot evict a newer connection from a reconnecting client.
func (r *Registry) Unregister(role Role, id types.ID, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[role][id]; ok && cur == c {
		delete(r.conns[role], id)
	}
}

func (r *Registry) Lookup(role Role, id types.ID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[role][id]
	return c, ok
}
