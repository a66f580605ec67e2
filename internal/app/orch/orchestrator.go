package orch

import (
	"github.com/dkeye/CodeRoom/internal/app"
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the presence state machine. It mutates the registry and the room
// store and reports what changed; it never talks to the transport itself.
// Callers serialize access: one inbound event at a time.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
}

func New(reg *app.Registry, rooms core.RoomManager, policy app.Policy) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms, Policy: policy}
}

// Membership is the member list of a room right after a change.
type Membership struct {
	RoomID  domain.RoomID
	Members []string
	// Deleted is set when the change emptied the room and it was collected.
	Deleted bool
}

type DisconnectResult struct {
	Conn domain.Connection
	Room *Membership
	Call *CallLeave
}

// Disconnect leaves the call, then the room, then drops the record, so the room
// broadcast still knows where the connection was.
func (o *Orchestrator) Disconnect(sid core.SessionID) (DisconnectResult, bool) {
	var res DisconnectResult
	if _, ok := o.Registry.Lookup(sid); !ok {
		return res, false
	}
	if cl, err := o.LeaveCall(sid); err == nil {
		res.Call = &cl
	}
	if m, err := o.Leave(sid); err == nil {
		res.Room = &m
	}
	conn, ok := o.Registry.Unregister(sid)
	res.Conn = conn
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("name", conn.Name).Msg("disconnected")
	return res, ok
}

// KickBySID cancels the connection; the transport then runs the usual disconnect.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	if o.Registry.Cancel(sid) {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicked")
	}
}

// OnBackPressure applies the policy to a connection that could not take a frame.
func (o *Orchestrator) OnBackPressure(sid core.SessionID, event string) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sid, event) {
	case app.KickMember:
		o.KickBySID(sid)
	case app.DropFrame, app.NoAction:
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("event", event).Msg("frame dropped")
	}
}
