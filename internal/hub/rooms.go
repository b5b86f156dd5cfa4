package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/domain"
)

// RoomTable tracks chat/typing room membership. Rooms are created implicitly
// on first join and may stay around empty; the id space is bounded by the
// conversations the persistence layer hands out.
type RoomTable struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[core.ConnID]struct{}
	index map[core.ConnID]map[domain.RoomID]struct{}
}

func NewRoomTable() *RoomTable {
	return &RoomTable{
		rooms: make(map[domain.RoomID]map[core.ConnID]struct{}),
		index: make(map[core.ConnID]map[domain.RoomID]struct{}),
	}
}

// Join adds conn to room. Idempotent.
func (t *RoomTable) Join(conn core.ConnID, room domain.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[room] == nil {
		t.rooms[room] = make(map[core.ConnID]struct{})
	}
	t.rooms[room][conn] = struct{}{}
	if t.index[conn] == nil {
		t.index[conn] = make(map[domain.RoomID]struct{})
	}
	t.index[conn][room] = struct{}{}
	log.Debug().Str("module", "hub.rooms").Str("conn", string(conn)).Str("room", string(room)).Msg("joined room")
}

// Leave removes conn from room. Idempotent.
func (t *RoomTable) Leave(conn core.ConnID, room domain.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if members, ok := t.rooms[room]; ok {
		delete(members, conn)
	}
	if rooms, ok := t.index[conn]; ok {
		delete(rooms, room)
	}
}

// Members returns a snapshot of the connections currently in room.
func (t *RoomTable) Members(room domain.RoomID) []core.ConnID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members, ok := t.rooms[room]
	if !ok {
		return nil
	}
	out := make([]core.ConnID, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// DropConn removes conn from every room it joined.
func (t *RoomTable) DropConn(conn core.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for room := range t.index[conn] {
		delete(t.rooms[room], conn)
	}
	delete(t.index, conn)
}
