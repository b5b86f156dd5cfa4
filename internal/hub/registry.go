package hub

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/domain"
)

// Registry is the source of truth for who is online: a bidirectional
// user↔connection map so disconnect cleanup is O(1) instead of a scan.
// At most one live connection per user; a later registration for the same
// user silently displaces the earlier one.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]core.ConnID
	byConn map[core.ConnID]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]core.ConnID),
		byConn: make(map[core.ConnID]domain.UserID),
	}
}

// Register binds user to conn, overwriting any prior binding for either side.
// Returns the displaced connection id, if a different connection held this
// user before.
func (r *Registry) Register(conn core.ConnID, user domain.UserID) (core.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var displaced core.ConnID
	had := false
	if old, ok := r.byUser[user]; ok && old != conn {
		delete(r.byConn, old)
		displaced, had = old, true
	}
	if oldUser, ok := r.byConn[conn]; ok && oldUser != user {
		delete(r.byUser, oldUser)
	}
	r.byUser[user] = conn
	r.byConn[conn] = user
	log.Info().Str("module", "hub.registry").Str("conn", string(conn)).Str("user", string(user)).Msg("registered")
	return displaced, had
}

// Unregister removes the binding for conn. Anonymous connections (never
// registered) are a silent no-op.
func (r *Registry) Unregister(conn core.ConnID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn)
	delete(r.byUser, user)
	log.Info().Str("module", "hub.registry").Str("conn", string(conn)).Str("user", string(user)).Msg("unregistered")
	return user, true
}

func (r *Registry) ConnOf(user domain.UserID) (core.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[user]
	return conn, ok
}

func (r *Registry) UserOf(conn core.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byConn[conn]
	return user, ok
}

// OnlineUsers returns a sorted snapshot of the online user ids.
func (r *Registry) OnlineUsers() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
