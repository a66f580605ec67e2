package signal

import (
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoinRoom(sid core.SessionID, data []byte) error {
	var p joinRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := domain.ValidateRoomID(p.RoomID)
	if err != nil {
		return err
	}

	res, err := ctl.Orch.Join(sid, roomID, p.UserName)
	if err != nil {
		return err
	}
	if res.Left != nil {
		ctl.broadcastRoom(res.Left.RoomID, "", EvMembershipChanged, res.Left.Members)
	}
	ctl.broadcastRoom(roomID, "", EvMembershipChanged, res.Joined.Members)
	return ctl.sendRoomState(sid, roomID)
}

// sendRoomState brings a joiner up to date: files, active code and recent chat.
func (ctl *SignalWSController) sendRoomState(sid core.SessionID, roomID domain.RoomID) error {
	info, err := ctl.Orch.Rooms.Snapshot(roomID)
	if err != nil {
		return err
	}
	msgs, err := ctl.Orch.Rooms.Messages(roomID, core.VisibleChatWindow)
	if err != nil {
		return err
	}
	ctl.sendTo(sid, EvRoomState, roomStatePayload{
		RoomID:     info.RoomID,
		Files:      info.Files,
		ActiveFile: info.ActiveFile,
		Code:       info.ActiveCode(),
		Language:   info.Language,
		Messages:   msgs,
	})
	return nil
}

func (ctl *SignalWSController) handleLeaveRoom(sid core.SessionID, _ []byte) error {
	m, err := ctl.Orch.Leave(sid)
	if err != nil {
		return err
	}
	ctl.broadcastRoom(m.RoomID, "", EvMembershipChanged, m.Members)
	return nil
}

func (ctl *SignalWSController) handleRename(sid core.SessionID, data []byte) error {
	var p renamePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	m, err := ctl.Orch.Rename(sid, p.UserName)
	if err != nil {
		return err
	}
	if m.RoomID != "" {
		ctl.broadcastRoom(m.RoomID, "", EvMembershipChanged, m.Members)
	}
	return nil
}

func (ctl *SignalWSController) handleGetRoomInfo(sid core.SessionID, data []byte) error {
	var p roomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := domain.ValidateRoomID(p.RoomID)
	if err != nil {
		return err
	}
	info, err := ctl.Orch.Rooms.Snapshot(roomID)
	if err != nil {
		return err
	}
	ctl.sendTo(sid, EvRoomInfo, info)
	return nil
}

// existingRoom validates the id and requires the room to be live.
func (ctl *SignalWSController) existingRoom(raw string) (domain.RoomID, error) {
	roomID, err := domain.ValidateRoomID(raw)
	if err != nil {
		return "", err
	}
	if _, ok := ctl.Orch.Rooms.Get(roomID); !ok {
		log.Debug().Str("module", "signal").Str("room", raw).Msg("room not live")
		return "", core.ErrRoomNotFound
	}
	return roomID, nil
}

// nameOf picks the display name carried by an event, falling back to the
// connection's own.
func (ctl *SignalWSController) nameOf(sid core.SessionID, claimed string) string {
	if claimed != "" {
		return domain.NormalizeUsername(claimed)
	}
	if conn, ok := ctl.Orch.Registry.Lookup(sid); ok && conn.Name != "" {
		return conn.Name
	}
	return domain.AnonymousName
}
