package signal

import "github.com/dkeye/CodeRoom/internal/core"

func (ctl *SignalWSController) handlePing(sid core.SessionID, _ []byte) error {
	ctl.sendTo(sid, EvPong, struct{}{})
	return nil
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, _ []byte) error {
	conn, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok {
		return core.ErrSessionNotFound
	}
	ctl.sendTo(sid, EvWhoAmI, whoAmIPayload{
		ConnectionID: string(sid),
		UserName:     conn.Name,
		RoomID:       conn.Room,
		CallRoomID:   conn.CallRoom,
	})
	return nil
}
