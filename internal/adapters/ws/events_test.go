package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/campuslink/realtime/internal/config"
	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/hub"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	c.frames = append(c.frames, f)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) countEvent(t *testing.T, name string) int {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		env, err := core.DecodeEnvelope(f)
		if err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if env.Event == name {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T) (*Controller, *hub.Hub) {
	t.Helper()
	h := hub.New(hub.DropPolicy{}, 4)
	go h.Run()
	t.Cleanup(h.Close)
	cfg := &config.Config{
		ReadLimit:    32768,
		PingPeriod:   54 * time.Second,
		SendBuffer:   32,
		RateLimit:    100,
		RateInterval: time.Minute,
	}
	return NewController(h, cfg), h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegisterFrame(t *testing.T) {
	ctl, h := newTestController(t)

	ctl.handleFrame("c1", []byte(`{"event":"register-user","data":{"userId":"alice"}}`))

	waitFor(t, "alice online", func() bool {
		users := h.OnlineUsers()
		return len(users) == 1 && users[0] == "alice"
	})
}

func TestMalformedFramesAreDropped(t *testing.T) {
	ctl, h := newTestController(t)

	ctl.handleFrame("c1", []byte(`not json at all`))
	ctl.handleFrame("c1", []byte(`{"event":"register-user","data":{"userId":""}}`))
	ctl.handleFrame("c1", []byte(`{"event":"register-user","data":"wrong shape"}`))
	ctl.handleFrame("c1", []byte(`{"event":"no-such-event","data":{}}`))

	time.Sleep(20 * time.Millisecond)
	if users := h.OnlineUsers(); len(users) != 0 {
		t.Errorf("OnlineUsers() = %v after malformed frames; want empty", users)
	}
}

func TestCallJoinFrame(t *testing.T) {
	ctl, h := newTestController(t)
	fc := &fakeConn{}
	h.Connect("c1", fc)

	ctl.handleFrame("c1", []byte(`{"event":"webrtc:join","data":{"roomId":"r1","userId":"alice"}}`))

	waitFor(t, "call room created", func() bool {
		rooms := h.CallRooms()
		return len(rooms) == 1 && rooms[0].MemberCount == 1
	})
	waitFor(t, "peers reply", func() bool {
		return fc.countEvent(t, core.EventCallPeers) == 1
	})
}

func TestCallJoinFrameRejectedWithoutUser(t *testing.T) {
	ctl, h := newTestController(t)

	ctl.handleFrame("c1", []byte(`{"event":"webrtc:join","data":{"roomId":"r1"}}`))

	time.Sleep(20 * time.Millisecond)
	if rooms := h.CallRooms(); len(rooms) != 0 {
		t.Errorf("CallRooms() = %v after invalid join; want none", rooms)
	}
}

func TestSignalFrameRequiresToAndType(t *testing.T) {
	ctl, h := newTestController(t)
	fc := &fakeConn{}
	h.Connect("c1", fc)

	ctl.handleFrame("c1", []byte(`{"event":"webrtc:signal","data":{"type":"offer"}}`))
	ctl.handleFrame("c1", []byte(`{"event":"webrtc:signal","data":{"to":"c1"}}`))

	time.Sleep(20 * time.Millisecond)
	if n := fc.countEvent(t, core.EventCallSignal); n != 0 {
		t.Errorf("got %d relayed signals from invalid frames; want 0", n)
	}
}

func TestMessageFrameFlow(t *testing.T) {
	ctl, h := newTestController(t)
	fc := &fakeConn{}
	h.Connect("c1", fc)

	ctl.handleFrame("c1", []byte(`{"event":"join-room","data":{"roomId":"r"}}`))
	time.Sleep(20 * time.Millisecond)
	ctl.handleFrame("c1", []byte(`{"event":"send-message","data":{"room":"r","content":"hi"}}`))

	waitFor(t, "message delivered", func() bool {
		return fc.countEvent(t, core.EventNewMessage) == 1
	})
}

func TestMessageRateLimitDropsExcess(t *testing.T) {
	h := hub.New(hub.DropPolicy{}, 4)
	go h.Run()
	t.Cleanup(h.Close)
	ctl := NewController(h, &config.Config{
		ReadLimit:    32768,
		PingPeriod:   54 * time.Second,
		SendBuffer:   32,
		RateLimit:    1,
		RateInterval: time.Minute,
	})
	fc := &fakeConn{}
	h.Connect("c1", fc)

	ctl.handleFrame("c1", []byte(`{"event":"join-room","data":{"roomId":"r"}}`))
	time.Sleep(20 * time.Millisecond)
	ctl.handleFrame("c1", []byte(`{"event":"send-message","data":{"room":"r","content":"one"}}`))
	ctl.handleFrame("c1", []byte(`{"event":"send-message","data":{"room":"r","content":"two"}}`))

	waitFor(t, "first message", func() bool {
		return fc.countEvent(t, core.EventNewMessage) >= 1
	})
	time.Sleep(30 * time.Millisecond)
	if n := fc.countEvent(t, core.EventNewMessage); n != 1 {
		t.Errorf("delivered %d messages; want 1 (second rate limited)", n)
	}
}

func TestFriendFrameUnicastsToTarget(t *testing.T) {
	ctl, h := newTestController(t)
	alice, bob := &fakeConn{}, &fakeConn{}
	h.Connect("ca", alice)
	h.Connect("cb", bob)
	ctl.handleFrame("ca", []byte(`{"event":"register-user","data":{"userId":"alice"}}`))
	ctl.handleFrame("cb", []byte(`{"event":"register-user","data":{"userId":"bob"}}`))
	waitFor(t, "both online", func() bool { return len(h.OnlineUsers()) == 2 })

	ctl.handleFrame("ca", []byte(`{"event":"friend:request-sent","data":{"to":"bob"}}`))

	waitFor(t, "friend push", func() bool {
		return bob.countEvent(t, core.EventFriendReceived) == 1
	})
	if n := alice.countEvent(t, core.EventFriendReceived); n != 0 {
		t.Errorf("sender saw %d friend:request-received events; want 0", n)
	}
}
