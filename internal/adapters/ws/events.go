package ws

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/domain"
)

var validate = validator.New()

// One payload shape per event name. Malformed shapes are rejected at this
// boundary: logged, dropped, never answered.

type registerPayload struct {
	UserID string `json:"userId" validate:"required"`
}

type joinRoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type typingPayload struct {
	domain.Message
	UserID string `json:"userId" validate:"required"`
	Status *bool  `json:"status" validate:"required"`
}

type callJoinPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
	UserID string `json:"userId" validate:"required,max=64"`
}

type callLeavePayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type friendPayload struct {
	To string `json:"to" validate:"required,max=64"`
}

func (ctl *Controller) handleFrame(id core.ConnID, data []byte) {
	env, err := core.DecodeEnvelope(data)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("bad json")
		return
	}

	switch env.Event {
	case core.EventRegisterUser:
		ctl.handleRegister(id, env.Data)
	case core.EventJoinRoom:
		ctl.handleJoinRoom(id, env.Data)
	case core.EventSendMessage:
		ctl.handleMessage(id, env.Data)
	case core.EventTyping:
		ctl.handleTyping(id, env.Data)
	case core.EventCallJoin:
		ctl.handleCallJoin(id, env.Data)
	case core.EventCallSignal:
		ctl.handleCallSignal(id, env.Data)
	case core.EventCallLeave:
		ctl.handleCallLeave(id, env.Data)
	case core.EventFriendSent:
		ctl.handleFriend(id, core.EventFriendReceived, env.Data)
	case core.EventFriendReply:
		ctl.handleFriend(id, core.EventFriendUpdate, env.Data)
	default:
		log.Warn().Str("module", "ws").Str("event", env.Event).Msg("unknown event")
	}
}

func (ctl *Controller) handleRegister(id core.ConnID, data json.RawMessage) {
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad register payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("register payload rejected")
		return
	}
	user, err := domain.NewUserID(p.UserID)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("invalid user id")
		return
	}
	ctl.hub.RegisterUser(id, user)
}

func (ctl *Controller) handleJoinRoom(id core.ConnID, data json.RawMessage) {
	var p joinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad join-room payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("join-room payload rejected")
		return
	}
	ctl.hub.JoinRoom(id, domain.RoomID(p.RoomID))
}

func (ctl *Controller) handleMessage(id core.ConnID, data json.RawMessage) {
	if !ctl.limiter.Allow(id) {
		log.Warn().Str("module", "ws").Str("conn", string(id)).Msg("message rate limited")
		return
	}
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad message payload")
		return
	}
	// Room resolution and the no-room drop happen in the hub; the payload
	// itself travels on verbatim.
	ctl.hub.SendMessage(id, msg, data)
}

func (ctl *Controller) handleTyping(id core.ConnID, data json.RawMessage) {
	if !ctl.limiter.Allow(id) {
		return
	}
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad typing payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("typing payload rejected")
		return
	}
	ctl.hub.Typing(id, p.Message, data)
}

func (ctl *Controller) handleCallJoin(id core.ConnID, data json.RawMessage) {
	var p callJoinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad webrtc:join payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("webrtc:join payload rejected")
		return
	}
	ctl.hub.CallJoin(id, domain.UserID(p.UserID), domain.RoomID(p.RoomID))
}

func (ctl *Controller) handleCallSignal(id core.ConnID, data json.RawMessage) {
	var sig core.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad webrtc:signal payload")
		return
	}
	if sig.To == "" || sig.Type == "" {
		log.Warn().Str("module", "ws").Str("conn", string(id)).Msg("webrtc:signal missing to/type")
		return
	}
	ctl.hub.CallSignal(id, sig)
}

func (ctl *Controller) handleCallLeave(id core.ConnID, data json.RawMessage) {
	var p callLeavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad webrtc:leave payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("webrtc:leave payload rejected")
		return
	}
	ctl.hub.CallLeave(id, domain.RoomID(p.RoomID))
}

func (ctl *Controller) handleFriend(id core.ConnID, outEvent string, data json.RawMessage) {
	var p friendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad friend payload")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("friend payload rejected")
		return
	}
	ctl.hub.NotifyUser(domain.UserID(p.To), outEvent, data)
}
