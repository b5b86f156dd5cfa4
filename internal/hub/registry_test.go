package hub

import (
	"testing"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/domain"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	r.Register("c1", "alice")
	r.Register("c2", "bob")

	if conn, ok := r.ConnOf("alice"); !ok || conn != "c1" {
		t.Errorf("ConnOf(alice) = %q, %v; want c1, true", conn, ok)
	}
	if user, ok := r.UserOf("c2"); !ok || user != "bob" {
		t.Errorf("UserOf(c2) = %q, %v; want bob, true", user, ok)
	}
}

func TestOnlineUsersAfterSequence(t *testing.T) {
	r := NewRegistry()

	r.Register("c1", "alice")
	r.Register("c2", "bob")
	r.Register("c3", "carol")
	r.Unregister("c2")

	got := r.OnlineUsers()
	want := []domain.UserID{"alice", "carol"}
	if len(got) != len(want) {
		t.Fatalf("OnlineUsers() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("OnlineUsers()[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestLastRegisterWins(t *testing.T) {
	r := NewRegistry()

	r.Register("c1", "alice")
	displaced, had := r.Register("c2", "alice")
	if !had || displaced != "c1" {
		t.Fatalf("Register displaced = %q, %v; want c1, true", displaced, had)
	}

	// The displaced connection is anonymous now; its unregister is a no-op
	// and must not mark alice offline.
	if _, ok := r.Unregister("c1"); ok {
		t.Error("Unregister(c1) removed a binding after displacement")
	}
	if conn, ok := r.ConnOf("alice"); !ok || conn != "c2" {
		t.Errorf("ConnOf(alice) = %q, %v; want c2, true", conn, ok)
	}

	// When the second connection goes, alice is fully offline even though
	// the first tab may still be live. Known gap, kept on purpose.
	if user, ok := r.Unregister("c2"); !ok || user != "alice" {
		t.Errorf("Unregister(c2) = %q, %v; want alice, true", user, ok)
	}
	if users := r.OnlineUsers(); len(users) != 0 {
		t.Errorf("OnlineUsers() = %v; want empty", users)
	}
}

func TestAnonymousUnregisterIsNoOp(t *testing.T) {
	r := NewRegistry()
	if user, ok := r.Unregister("never-registered"); ok {
		t.Errorf("Unregister of anonymous conn returned %q, true; want no-op", user)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice")
	displaced, had := r.Register("c1", "alice")
	if had {
		t.Errorf("duplicate Register displaced %q; want nothing", displaced)
	}
	if conn, ok := r.ConnOf("alice"); !ok || conn != core.ConnID("c1") {
		t.Errorf("ConnOf(alice) = %q, %v; want c1, true", conn, ok)
	}
}
