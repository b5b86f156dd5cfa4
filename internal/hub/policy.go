package hub

import "github.com/campuslink/realtime/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickConn
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackpressure(conn core.ConnID) BackpressureAction
}

// DropPolicy drops the frame and moves on. Delivery here is at-least-once
// with no ack, so a lost frame is within contract.
type DropPolicy struct{}

func (DropPolicy) OnBackpressure(core.ConnID) BackpressureAction { return DropFrame }

// KickPolicy disconnects slow consumers instead of letting them lag behind.
type KickPolicy struct{}

func (KickPolicy) OnBackpressure(core.ConnID) BackpressureAction { return KickConn }
