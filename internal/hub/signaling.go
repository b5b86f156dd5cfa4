package hub

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/domain"
)

// Participant is one (connection, user) pair inside a call room.
type Participant struct {
	Conn core.ConnID
	User domain.UserID
}

// CallTable tracks call-room participants. Its namespace is disjoint from
// the chat RoomTable even when id strings coincide. A room is deleted as
// soon as its participant set becomes empty.
type CallTable struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[core.ConnID]Participant
	index map[core.ConnID]map[domain.RoomID]struct{}
}

func NewCallTable() *CallTable {
	return &CallTable{
		rooms: make(map[domain.RoomID]map[core.ConnID]Participant),
		index: make(map[core.ConnID]map[domain.RoomID]struct{}),
	}
}

// Join adds p to room and returns the participants that were already there,
// so the caller can initiate toward each of them. Idempotent for repeats.
func (t *CallTable) Join(room domain.RoomID, p Participant) []Participant {
	t.mu.Lock()
	defer t.mu.Unlock()

	members := t.rooms[room]
	if members == nil {
		members = make(map[core.ConnID]Participant)
		t.rooms[room] = members
	}
	existing := make([]Participant, 0, len(members))
	for conn, other := range members {
		if conn == p.Conn {
			continue
		}
		existing = append(existing, other)
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].Conn < existing[j].Conn })

	members[p.Conn] = p
	if t.index[p.Conn] == nil {
		t.index[p.Conn] = make(map[domain.RoomID]struct{})
	}
	t.index[p.Conn][room] = struct{}{}
	log.Info().Str("module", "hub.calls").Str("conn", string(p.Conn)).Str("user", string(p.User)).Str("room", string(room)).Msg("joined call room")
	return existing
}

// Leave removes conn from room. Returns whether it was a participant and the
// remaining members; the room entry is deleted when it empties.
func (t *CallTable) Leave(conn core.ConnID, room domain.RoomID) (bool, []Participant) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaveLocked(conn, room)
}

func (t *CallTable) leaveLocked(conn core.ConnID, room domain.RoomID) (bool, []Participant) {
	members, ok := t.rooms[room]
	if !ok {
		return false, nil
	}
	if _, ok := members[conn]; !ok {
		return false, nil
	}
	delete(members, conn)
	if rooms, ok := t.index[conn]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(t.index, conn)
		}
	}
	if len(members) == 0 {
		delete(t.rooms, room)
		log.Info().Str("module", "hub.calls").Str("room", string(room)).Msg("call room emptied")
		return true, nil
	}
	remaining := make([]Participant, 0, len(members))
	for _, p := range members {
		remaining = append(remaining, p)
	}
	return true, remaining
}

// Drop removes conn from every call room it participates in and returns the
// remaining members per affected room. A connection may sit in more than one
// room; the protocol does not forbid it. Calling Drop twice is a no-op.
func (t *CallTable) Drop(conn core.ConnID) map[domain.RoomID][]Participant {
	t.mu.Lock()
	defer t.mu.Unlock()

	rooms := t.index[conn]
	if len(rooms) == 0 {
		return nil
	}
	affected := make(map[domain.RoomID][]Participant, len(rooms))
	for room := range rooms {
		if left, remaining := t.leaveLocked(conn, room); left {
			affected[room] = remaining
		}
	}
	return affected
}

// Member reports whether conn currently participates in room.
func (t *CallTable) Member(room domain.RoomID, conn core.ConnID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rooms[room][conn]
	return ok
}

// Count returns the participant count of room.
func (t *CallTable) Count(room domain.RoomID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[room])
}

// List is a read-only view of the active call rooms for APIs.
func (t *CallTable) List() []domain.RoomInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(t.rooms))
	for id, members := range t.rooms {
		out = append(out, domain.RoomInfo{ID: id, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
