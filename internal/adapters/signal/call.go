package signal

import (
	"fmt"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// The call sub-protocol only relays. Peers build a full mesh among themselves and
// the signal payload is never inspected here.

func (ctl *SignalWSController) handleJoinCall(sid core.SessionID, data []byte) error {
	var p joinRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := domain.ValidateRoomID(p.RoomID)
	if err != nil {
		return err
	}
	res, err := ctl.Orch.JoinCall(sid, roomID, p.UserName)
	if err != nil {
		return err
	}
	if res.Left != nil {
		ctl.sendEach(res.Left.Remaining, EvUserLeftCall, userLeftCallPayload{ConnectionID: string(sid)})
	}
	ctl.sendEach(res.Peers, EvUserJoinedCall, userJoinedCallPayload{
		UserName:     res.Name,
		ConnectionID: string(sid),
	})
	return nil
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, data []byte) error {
	var p signalPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.To == "" {
		return fmt.Errorf("%w: missing target", core.ErrBadPayload)
	}
	to := core.SessionID(p.To)
	if _, ok := ctl.Orch.Registry.Lookup(to); !ok {
		return core.ErrSessionNotFound
	}
	log.Debug().Str("module", "signal.call").Str("sid", string(sid)).Str("to", p.To).Int("bytes", len(p.Signal)).Msg("relay signal")
	ctl.sendTo(to, EvSignal, signalOutPayload{Signal: p.Signal, From: string(sid)})
	return nil
}

func (ctl *SignalWSController) handleLeaveCall(sid core.SessionID, _ []byte) error {
	res, err := ctl.Orch.LeaveCall(sid)
	if err != nil {
		return err
	}
	ctl.sendEach(res.Remaining, EvUserLeftCall, userLeftCallPayload{ConnectionID: string(sid)})
	return nil
}

func (ctl *SignalWSController) handleToggleCamera(sid core.SessionID, _ []byte) error {
	tg, err := ctl.Orch.ToggleCamera(sid)
	if err != nil {
		return err
	}
	ctl.broadcastCall(tg.CallID, "", EvCameraToggled, cameraToggledPayload{ConnectionID: string(sid), CameraOn: tg.Value})
	return nil
}

func (ctl *SignalWSController) handleToggleMic(sid core.SessionID, _ []byte) error {
	tg, err := ctl.Orch.ToggleMic(sid)
	if err != nil {
		return err
	}
	ctl.broadcastCall(tg.CallID, "", EvMicToggled, micToggledPayload{ConnectionID: string(sid), MicOn: tg.Value})
	return nil
}
