package signal

import (
	"errors"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Fan-out helpers. Callers hold ctl.mu. Targets are resolved from the registry at
// send time.

func (ctl *SignalWSController) sendTo(sid core.SessionID, event string, payload any) {
	sig, ok := ctl.Orch.Registry.Signal(sid)
	if !ok {
		return
	}
	f, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("encode")
		return
	}
	ctl.deliver(sid, sig, event, f)
}

func (ctl *SignalWSController) sendEach(sids []core.SessionID, event string, payload any) {
	if len(sids) == 0 {
		return
	}
	f, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("encode")
		return
	}
	for _, sid := range sids {
		if sig, ok := ctl.Orch.Registry.Signal(sid); ok {
			ctl.deliver(sid, sig, event, f)
		}
	}
}

// broadcastRoom sends to every connection in room except the given one ("" for none).
func (ctl *SignalWSController) broadcastRoom(room domain.RoomID, except core.SessionID, event string, payload any) {
	ctl.sendEach(ctl.roomTargets(room, except), event, payload)
}

func (ctl *SignalWSController) broadcastCall(call domain.RoomID, except core.SessionID, event string, payload any) {
	var out []core.SessionID
	for _, snap := range ctl.Orch.Registry.MembersOfCall(call) {
		if snap.SID != except {
			out = append(out, snap.SID)
		}
	}
	ctl.sendEach(out, event, payload)
}

func (ctl *SignalWSController) roomTargets(room domain.RoomID, except core.SessionID) []core.SessionID {
	var out []core.SessionID
	for _, snap := range ctl.Orch.Registry.MembersOfRoom(room) {
		if snap.SID != except {
			out = append(out, snap.SID)
		}
	}
	return out
}

func (ctl *SignalWSController) deliver(sid core.SessionID, sig core.SignalConnection, event string, f core.Frame) {
	err := sig.TrySend(f)
	switch {
	case err == nil:
	case errors.Is(err, ErrBackpressure):
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("event", event).Msg("send queue full")
		ctl.Orch.OnBackPressure(sid, event)
	default:
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("event", event).Msg("send failed")
	}
}

func (ctl *SignalWSController) replyError(sid core.SessionID, event string, err error) {
	ctl.sendTo(sid, EvError, errorPayload{Event: event, Error: reason(err)})
}

// reason is the client-facing text of a handler error.
func reason(err error) string {
	switch {
	case errors.Is(err, errUnknownEvent):
		return "unknown event"
	case errors.Is(err, core.ErrBadPayload):
		return "bad payload"
	}
	return err.Error()
}
