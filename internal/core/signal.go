package core

import "encoding/json"

// CallPeer is the wire shape of one call-room participant.
type CallPeer struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
}

// Signal is one point-to-point negotiation message. The relay never inspects
// Description or Candidate; both travel as raw JSON so the payload reaches
// the target byte for byte.
type Signal struct {
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	Type        string          `json:"type"`
	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	UserID      string          `json:"userId,omitempty"`
}

// Signal type values used by the mesh clients.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)
