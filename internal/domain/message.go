package domain

// Message carries the routable fields of a chat message. The hub only reads
// these to pick a room; everything else in the payload is passed through
// verbatim.
type Message struct {
	ChannelID      string `json:"channelId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Room           string `json:"room,omitempty"`
}

// ResolveRoom picks the delivery room: first present of channelId,
// conversationId, room. ok is false when none is set.
func (m Message) ResolveRoom() (RoomID, bool) {
	switch {
	case m.ChannelID != "":
		return RoomID(m.ChannelID), true
	case m.ConversationID != "":
		return RoomID(m.ConversationID), true
	case m.Room != "":
		return RoomID(m.Room), true
	}
	return "", false
}
