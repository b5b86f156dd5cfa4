package domain

// RoomID names a delivery scope. Chat rooms and call rooms live in disjoint
// namespaces even when the id strings coincide.
type RoomID string

const MaxRoomIDLen = 128

// RoomInfo is a read-only view of a call room for APIs.
type RoomInfo struct {
	ID          RoomID `json:"id"`
	MemberCount int    `json:"member_count"`
}
