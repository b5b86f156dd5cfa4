package core

// Event names. These strings are the compatibility surface between the hub
// and its clients; renaming one is a protocol change.
const (
	// inbound
	EventRegisterUser = "register-user"
	EventJoinRoom     = "join-room"
	EventSendMessage  = "send-message"
	EventTyping       = "typing"
	EventCallJoin     = "webrtc:join"
	EventCallSignal   = "webrtc:signal"
	EventCallLeave    = "webrtc:leave"
	EventFriendSent   = "friend:request-sent"
	EventFriendReply  = "friend:respond"

	// outbound
	EventUserOnline     = "user:online"
	EventUserOffline    = "user:offline"
	EventUsersOnline    = "users:online"
	EventNewMessage     = "new-message"
	EventCallPeers      = "webrtc:peers"
	EventCallPeerJoined = "webrtc:peer-joined"
	EventCallPeerLeft   = "webrtc:peer-left"
	EventFriendReceived = "friend:request-received"
	EventFriendUpdate   = "friend:update"
	EventError          = "error"
)
