// Package core holds the transport-facing types shared by the hub and its
// adapters: frames, connection ids, and the event envelope.
package core

// Frame is an encoded event ready for transport.
type Frame []byte

// ConnID identifies one live transport connection. Ephemeral: a reconnect
// produces a new id.
type ConnID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
