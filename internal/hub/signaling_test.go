package hub

import (
	"testing"

	"github.com/campuslink/realtime/internal/domain"
)

func TestCallJoinReturnsPreExistingOnly(t *testing.T) {
	ct := NewCallTable()

	existing := ct.Join("r1", Participant{Conn: "a", User: "alice"})
	if len(existing) != 0 {
		t.Fatalf("first join saw %v; want empty", existing)
	}

	existing = ct.Join("r1", Participant{Conn: "b", User: "bob"})
	if len(existing) != 1 || existing[0].Conn != "a" || existing[0].User != "alice" {
		t.Fatalf("second join saw %v; want [{a alice}]", existing)
	}

	// Re-join never lists the caller itself.
	existing = ct.Join("r1", Participant{Conn: "b", User: "bob"})
	if len(existing) != 1 || existing[0].Conn != "a" {
		t.Fatalf("re-join saw %v; want [{a alice}]", existing)
	}
}

func TestCallLeaveDeletesEmptyRoom(t *testing.T) {
	ct := NewCallTable()
	ct.Join("r1", Participant{Conn: "a", User: "alice"})
	ct.Join("r1", Participant{Conn: "b", User: "bob"})

	left, remaining := ct.Leave("a", "r1")
	if !left || len(remaining) != 1 || remaining[0].Conn != "b" {
		t.Fatalf("Leave(a) = %v, %v; want true, [{b bob}]", left, remaining)
	}

	left, remaining = ct.Leave("b", "r1")
	if !left || remaining != nil {
		t.Fatalf("Leave(b) = %v, %v; want true, nil", left, remaining)
	}
	if rooms := ct.List(); len(rooms) != 0 {
		t.Errorf("List() = %v after room emptied; want none", rooms)
	}

	if left, _ := ct.Leave("b", "r1"); left {
		t.Error("Leave of a gone room reported a removal")
	}
}

func TestDropScansAllRooms(t *testing.T) {
	ct := NewCallTable()
	ct.Join("r1", Participant{Conn: "a", User: "alice"})
	ct.Join("r1", Participant{Conn: "c", User: "carol"})
	ct.Join("r2", Participant{Conn: "b", User: "bob"})
	ct.Join("r2", Participant{Conn: "c", User: "carol"})

	affected := ct.Drop("c")
	if len(affected) != 2 {
		t.Fatalf("Drop(c) affected %d rooms; want 2", len(affected))
	}
	if rem := affected["r1"]; len(rem) != 1 || rem[0].Conn != "a" {
		t.Errorf("r1 remaining = %v; want [{a alice}]", rem)
	}
	if rem := affected["r2"]; len(rem) != 1 || rem[0].Conn != "b" {
		t.Errorf("r2 remaining = %v; want [{b bob}]", rem)
	}

	// Repeated disconnect must be a no-op.
	if affected := ct.Drop("c"); affected != nil {
		t.Errorf("second Drop(c) = %v; want nil", affected)
	}
}

func TestCallCountAndList(t *testing.T) {
	ct := NewCallTable()
	ct.Join("r1", Participant{Conn: "a", User: "alice"})
	ct.Join("r1", Participant{Conn: "b", User: "bob"})

	if n := ct.Count("r1"); n != 2 {
		t.Errorf("Count(r1) = %d; want 2", n)
	}
	if n := ct.Count("r2"); n != 0 {
		t.Errorf("Count(r2) = %d; want 0", n)
	}

	rooms := ct.List()
	want := []domain.RoomInfo{{ID: "r1", MemberCount: 2}}
	if len(rooms) != 1 || rooms[0] != want[0] {
		t.Errorf("List() = %v; want %v", rooms, want)
	}
}
