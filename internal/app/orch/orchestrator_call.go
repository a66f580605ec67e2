package orch

import (
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Call membership is independent of room membership: leaving the coding room does
// not leave the call.

type CallJoin struct {
	CallID domain.RoomID
	Name   string
	Left   *CallLeave
	// Peers are the other connections already in the call.
	Peers []core.SessionID
}

type CallLeave struct {
	CallID    domain.RoomID
	Remaining []core.SessionID
}

type CallToggle struct {
	CallID domain.RoomID
	Value  bool
}

func (o *Orchestrator) JoinCall(sid core.SessionID, roomID domain.RoomID, name string) (CallJoin, error) {
	var res CallJoin
	conn, ok := o.Registry.Lookup(sid)
	if !ok {
		return res, core.ErrSessionNotFound
	}
	callID := domain.CallRoomID(roomID)
	if conn.InCall && conn.CallRoom == callID {
		// Already there: flags stay as toggled and peers are not told twice.
		res.CallID = callID
		res.Name = conn.Name
		res.Peers = []core.SessionID{}
		log.Debug().Str("module", "orch.call").Str("sid", string(sid)).Str("call", string(callID)).Msg("already in call")
		return res, nil
	}
	if conn.InCall {
		if left, err := o.LeaveCall(sid); err == nil {
			res.Left = &left
		}
	}

	if name == "" {
		name = conn.Name
	}
	o.Registry.SetCallRoom(sid, callID)
	o.Registry.SetInCall(sid, true)

	res.CallID = callID
	res.Name = domain.NormalizeUsername(name)
	res.Peers = o.callPeers(callID, sid)
	log.Info().Str("module", "orch.call").Str("sid", string(sid)).Str("call", string(callID)).Int("peers", len(res.Peers)).Msg("joined call")
	return res, nil
}

func (o *Orchestrator) LeaveCall(sid core.SessionID) (CallLeave, error) {
	conn, ok := o.Registry.Lookup(sid)
	if !ok {
		return CallLeave{}, core.ErrSessionNotFound
	}
	if !conn.InCall {
		return CallLeave{}, core.ErrNotInCall
	}
	o.Registry.SetCallRoom(sid, "")
	o.Registry.SetInCall(sid, false)

	res := CallLeave{CallID: conn.CallRoom, Remaining: o.callPeers(conn.CallRoom, sid)}
	log.Info().Str("module", "orch.call").Str("sid", string(sid)).Str("call", string(conn.CallRoom)).Msg("left call")
	return res, nil
}

func (o *Orchestrator) ToggleCamera(sid core.SessionID) (CallToggle, error) {
	return o.toggle(sid, o.Registry.ToggleCamera)
}

func (o *Orchestrator) ToggleMic(sid core.SessionID) (CallToggle, error) {
	return o.toggle(sid, o.Registry.ToggleMic)
}

func (o *Orchestrator) toggle(sid core.SessionID, flip func(core.SessionID) (bool, bool)) (CallToggle, error) {
	conn, ok := o.Registry.Lookup(sid)
	if !ok {
		return CallToggle{}, core.ErrSessionNotFound
	}
	if !conn.InCall {
		return CallToggle{}, core.ErrNotInCall
	}
	v, _ := flip(sid)
	return CallToggle{CallID: conn.CallRoom, Value: v}, nil
}

func (o *Orchestrator) callPeers(callID domain.RoomID, except core.SessionID) []core.SessionID {
	out := make([]core.SessionID, 0)
	for _, snap := range o.Registry.MembersOfCall(callID) {
		if snap.SID != except {
			out = append(out, snap.SID)
		}
	}
	return out
}
