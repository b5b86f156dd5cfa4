package core

import "encoding/json"

// Envelope is the wire shape of every event in both directions:
// an event name plus an opaque data object.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func DecodeEnvelope(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// EncodeEvent marshals an outbound event into a Frame.
func EncodeEvent(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
