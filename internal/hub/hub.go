// Package hub is the in-memory real-time core: who is online, which
// connection sits in which room, and the point-to-point relay that carries
// WebRTC negotiation between peers. All state mutation happens on a single
// dispatcher goroutine; every inbound event runs to completion before the
// next one is picked up.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/domain"
)

type Hub struct {
	inbox chan func()
	done  chan struct{}
	stop  sync.Once

	// conns is touched only by the dispatcher goroutine.
	conns map[core.ConnID]core.SignalConnection

	registry *Registry
	rooms    *RoomTable
	calls    *CallTable
	presence *Presence
	policy   Policy

	maxCallPeers int
}

func New(policy Policy, maxCallPeers int) *Hub {
	h := &Hub{
		inbox:        make(chan func(), 256),
		done:         make(chan struct{}),
		conns:        make(map[core.ConnID]core.SignalConnection),
		registry:     NewRegistry(),
		rooms:        NewRoomTable(),
		calls:        NewCallTable(),
		policy:       policy,
		maxCallPeers: maxCallPeers,
	}
	h.presence = NewPresence(h.registry, h)
	return h
}

// Run services the inbox until Close. It should be started in its own
// goroutine; it is the only goroutine that mutates hub state.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeConns()
			return
		case task := <-h.inbox:
			task()
		}
	}
}

// Close stops the dispatcher and closes every live connection.
func (h *Hub) Close() {
	h.stop.Do(func() { close(h.done) })
}

func (h *Hub) do(task func()) {
	select {
	case h.inbox <- task:
	case <-h.done:
	}
}

// Registry and CallTable carry their own locks, so these read-only views are
// safe to call from outside the dispatcher (REST handlers, tests).

func (h *Hub) OnlineUsers() []domain.UserID { return h.registry.OnlineUsers() }

func (h *Hub) CallRooms() []domain.RoomInfo { return h.calls.List() }

// --- transport lifecycle ---

// Connect attaches a live transport connection to the hub.
func (h *Hub) Connect(id core.ConnID, c core.SignalConnection) {
	h.do(func() { h.handleConnect(id, c) })
}

// Disconnect tears down everything the connection touched: call rooms first
// (peer-left fan-out), then chat rooms, then presence. Repeats are no-ops.
func (h *Hub) Disconnect(id core.ConnID) {
	h.do(func() { h.handleDisconnect(id) })
}

// --- inbound events ---

func (h *Hub) RegisterUser(id core.ConnID, user domain.UserID) {
	h.do(func() { h.presence.Register(id, user) })
}

func (h *Hub) JoinRoom(id core.ConnID, room domain.RoomID) {
	h.do(func() { h.rooms.Join(id, room) })
}

// SendMessage resolves the target room from the message's routing fields and
// fans the untouched payload out to it. Unresolvable messages are logged and
// dropped; the sender gets no feedback.
func (h *Hub) SendMessage(id core.ConnID, msg domain.Message, raw json.RawMessage) {
	h.do(func() { h.handleMessage(id, msg, raw) })
}

// Typing relays a typing indicator to the other members of the room. The hub
// applies no TTL: the sender's client owes the follow-up status:false.
func (h *Hub) Typing(id core.ConnID, msg domain.Message, raw json.RawMessage) {
	h.do(func() { h.handleTyping(id, msg, raw) })
}

func (h *Hub) CallJoin(id core.ConnID, user domain.UserID, room domain.RoomID) {
	h.do(func() { h.handleCallJoin(id, user, room) })
}

func (h *Hub) CallSignal(from core.ConnID, sig core.Signal) {
	h.do(func() { h.handleCallSignal(from, sig) })
}

func (h *Hub) CallLeave(id core.ConnID, room domain.RoomID) {
	h.do(func() { h.handleCallLeave(id, room) })
}

// NotifyUser pushes an event to a user's current connection, dropping it
// silently when the user is offline.
func (h *Hub) NotifyUser(user domain.UserID, event string, payload json.RawMessage) {
	h.do(func() { h.presence.Notify(user, event, payload) })
}

// --- dispatcher-side handlers ---

func (h *Hub) handleConnect(id core.ConnID, c core.SignalConnection) {
	h.conns[id] = c
	log.Info().Str("module", "hub").Str("conn", string(id)).Int("total", len(h.conns)).Msg("connected")
}

func (h *Hub) handleDisconnect(id core.ConnID) {
	if _, ok := h.conns[id]; !ok {
		return
	}
	for room, remaining := range h.calls.Drop(id) {
		h.emitPeerLeft(id, room, remaining)
	}
	h.rooms.DropConn(id)
	h.presence.Unregister(id)
	delete(h.conns, id)
	log.Info().Str("module", "hub").Str("conn", string(id)).Int("total", len(h.conns)).Msg("disconnected")
}

func (h *Hub) handleMessage(id core.ConnID, msg domain.Message, raw json.RawMessage) {
	room, ok := msg.ResolveRoom()
	if !ok {
		log.Warn().Str("module", "hub").Str("conn", string(id)).Msg("message with no routable room, dropped")
		return
	}
	h.publish(room, core.EventNewMessage, raw, "")
}

func (h *Hub) handleTyping(id core.ConnID, msg domain.Message, raw json.RawMessage) {
	room, ok := msg.ResolveRoom()
	if !ok {
		log.Warn().Str("module", "hub").Str("conn", string(id)).Msg("typing with no routable room, dropped")
		return
	}
	h.publish(room, core.EventTyping, raw, id)
}

func (h *Hub) handleCallJoin(id core.ConnID, user domain.UserID, room domain.RoomID) {
	// The cap only guards new arrivals; a repeated join from a current
	// participant is an idempotent overwrite even when the room is full.
	rejoin := h.calls.Member(room, id)
	if !rejoin && h.calls.Count(room) >= h.maxCallPeers {
		log.Warn().Str("module", "hub").Str("conn", string(id)).Str("room", string(room)).Int("cap", h.maxCallPeers).Msg("call room full")
		h.unicast(id, core.EventError, map[string]string{"error": "room full"})
		return
	}
	existing := h.calls.Join(room, Participant{Conn: id, User: user})

	peers := make([]core.CallPeer, 0, len(existing))
	for _, p := range existing {
		peers = append(peers, core.CallPeer{SocketID: string(p.Conn), UserID: string(p.User)})
	}
	// Reply to the caller only: it initiates toward each listed peer.
	h.unicast(id, core.EventCallPeers, struct {
		Peers []core.CallPeer `json:"peers"`
	}{Peers: peers})
	if rejoin {
		return
	}

	// Existing members learn about the arrival and wait as answerers. Never
	// echoed back to the caller.
	joined := core.CallPeer{SocketID: string(id), UserID: string(user)}
	frame, err := core.EncodeEvent(core.EventCallPeerJoined, joined)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("encode peer-joined")
		return
	}
	var dropped []core.ConnID
	for _, p := range existing {
		if !h.deliver(p.Conn, frame) {
			dropped = append(dropped, p.Conn)
		}
	}
	h.applyBackpressure(dropped)
}

func (h *Hub) handleCallSignal(from core.ConnID, sig core.Signal) {
	to := core.ConnID(sig.To)
	sig.From = string(from)
	sig.To = ""
	// Stale targets are a no-op: the protocol has no ack, so the sender
	// cannot distinguish delivered from gone.
	h.unicast(to, core.EventCallSignal, sig)
}

func (h *Hub) handleCallLeave(id core.ConnID, room domain.RoomID) {
	left, remaining := h.calls.Leave(id, room)
	if !left {
		return
	}
	h.emitPeerLeft(id, room, remaining)
}

func (h *Hub) emitPeerLeft(id core.ConnID, room domain.RoomID, remaining []Participant) {
	frame, err := core.EncodeEvent(core.EventCallPeerLeft, map[string]string{"socketId": string(id)})
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("encode peer-left")
		return
	}
	var dropped []core.ConnID
	for _, p := range remaining {
		if !h.deliver(p.Conn, frame) {
			dropped = append(dropped, p.Conn)
		}
	}
	h.applyBackpressure(dropped)
	log.Info().Str("module", "hub").Str("conn", string(id)).Str("room", string(room)).Int("notified", len(remaining)).Msg("peer left call room")
}

// --- delivery ---

func (h *Hub) unicast(id core.ConnID, event string, data any) {
	if _, ok := h.conns[id]; !ok {
		return
	}
	frame, err := core.EncodeEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("event", event).Msg("encode unicast")
		return
	}
	if !h.deliver(id, frame) {
		h.applyBackpressure([]core.ConnID{id})
	}
}

func (h *Hub) broadcast(event string, data any) {
	frame, err := core.EncodeEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("event", event).Msg("encode broadcast")
		return
	}
	var dropped []core.ConnID
	for id := range h.conns {
		if !h.deliver(id, frame) {
			dropped = append(dropped, id)
		}
	}
	h.applyBackpressure(dropped)
}

// publish fans an event out to a chat room, optionally excluding one
// connection. Zero members means zero deliveries and no error.
func (h *Hub) publish(room domain.RoomID, event string, data any, exclude core.ConnID) {
	members := h.rooms.Members(room)
	if len(members) == 0 {
		return
	}
	frame, err := core.EncodeEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("event", event).Msg("encode publish")
		return
	}
	var dropped []core.ConnID
	for _, id := range members {
		if id == exclude {
			continue
		}
		if !h.deliver(id, frame) {
			dropped = append(dropped, id)
		}
	}
	h.applyBackpressure(dropped)
}

func (h *Hub) deliver(id core.ConnID, frame core.Frame) bool {
	c, ok := h.conns[id]
	if !ok {
		return true
	}
	if err := c.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "hub").Str("conn", string(id)).Msg("send failed")
		return false
	}
	return true
}

func (h *Hub) applyBackpressure(dropped []core.ConnID) {
	if h.policy == nil {
		return
	}
	for _, id := range dropped {
		switch h.policy.OnBackpressure(id) {
		case KickConn:
			log.Warn().Str("module", "hub").Str("conn", string(id)).Msg("kicking slow consumer")
			if c, ok := h.conns[id]; ok {
				h.handleDisconnect(id)
				c.Close()
			}
		case DropFrame, NoAction:
		}
	}
}

func (h *Hub) closeConns() {
	for id, c := range h.conns {
		c.Close()
		delete(h.conns, id)
	}
	log.Info().Str("module", "hub").Msg("hub closed")
}
