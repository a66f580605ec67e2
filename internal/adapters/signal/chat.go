package signal

import (
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
)

func (ctl *SignalWSController) handleChatMessage(sid core.SessionID, data []byte) error {
	var p chatPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := ctl.existingRoom(p.RoomID)
	if err != nil {
		return err
	}
	if err := domain.ValidateChatMessage(p.Message); err != nil {
		return err
	}
	if !ctl.limiter.Allow(sid) {
		return core.ErrRateLimited
	}
	msg, err := ctl.Orch.Rooms.AddMessage(roomID, ctl.nameOf(sid, p.UserName), p.Message)
	if err != nil {
		return err
	}
	ctl.broadcastRoom(roomID, "", EvChatMessage, msg)
	return nil
}

// Typing hints skip the sender, who already knows.
func (ctl *SignalWSController) handleTyping(sid core.SessionID, data []byte) error {
	return ctl.typing(sid, data, true)
}

func (ctl *SignalWSController) handleStopTyping(sid core.SessionID, data []byte) error {
	return ctl.typing(sid, data, false)
}

func (ctl *SignalWSController) typing(sid core.SessionID, data []byte, typing bool) error {
	var p typingPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := ctl.Orch.SetTyping(sid, typing); err != nil {
		return err
	}
	var roomID domain.RoomID
	if p.RoomID != "" {
		id, err := domain.ValidateRoomID(p.RoomID)
		if err != nil {
			return err
		}
		roomID = id
	} else {
		conn, _ := ctl.Orch.Registry.Lookup(sid)
		roomID = conn.Room
	}
	event := EvUserTyping
	if !typing {
		event = EvUserStoppedTyping
	}
	ctl.broadcastRoom(roomID, sid, event, ctl.nameOf(sid, p.UserName))
	return nil
}
