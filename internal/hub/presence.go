package hub

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/domain"
)

// sender is the delivery surface Presence needs from the hub.
type sender interface {
	unicast(id core.ConnID, event string, data any)
	broadcast(event string, data any)
}

// Presence turns registry transitions into online/offline events and carries
// targeted pushes to a user's current connection.
type Presence struct {
	reg *Registry
	out sender
}

func NewPresence(reg *Registry, out sender) *Presence {
	return &Presence{reg: reg, out: out}
}

// Register binds the user, announces it to everyone, and replies with the
// full online list to the caller only, so a fresh client does not wait for
// N individual broadcasts.
func (p *Presence) Register(conn core.ConnID, user domain.UserID) {
	p.reg.Register(conn, user)
	p.out.broadcast(core.EventUserOnline, user)
	p.out.unicast(conn, core.EventUsersOnline, p.reg.OnlineUsers())
}

// Unregister drops the binding for conn, broadcasting offline only when the
// connection was actually bound to a user.
func (p *Presence) Unregister(conn core.ConnID) {
	user, ok := p.reg.Unregister(conn)
	if !ok {
		return
	}
	p.out.broadcast(core.EventUserOffline, user)
}

// Notify unicasts an event to the user's current connection. Offline users
// are a silent drop: no queuing, no delivery guarantee.
func (p *Presence) Notify(user domain.UserID, event string, payload json.RawMessage) {
	conn, ok := p.reg.ConnOf(user)
	if !ok {
		log.Debug().Str("module", "hub.presence").Str("user", string(user)).Str("event", event).Msg("notify target offline, dropped")
		return
	}
	p.out.unicast(conn, event, payload)
}
