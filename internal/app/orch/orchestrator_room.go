package orch

import (
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinResult struct {
	// Left is the room the connection was moved out of, if any.
	Left   *Membership
	Joined Membership
	Name   string
}

// Join puts the connection into roomID under name. A connection is in at most one
// room: joining another room fully leaves the previous one first.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID, name string) (JoinResult, error) {
	var res JoinResult
	conn, ok := o.Registry.Lookup(sid)
	if !ok {
		return res, core.ErrSessionNotFound
	}
	name = domain.NormalizeUsername(name)

	if conn.Joined() && conn.Room != roomID {
		left, err := o.Leave(sid)
		if err == nil {
			res.Left = &left
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(left.RoomID)).Msg("moved out of room")
		}
	}

	room := o.Rooms.GetOrCreate(roomID)
	if conn.Room == roomID && conn.Name != name {
		room.RemoveMember(conn.Name)
	}
	o.Registry.SetName(sid, name)
	o.Registry.SetRoom(sid, roomID)

	res.Name = name
	res.Joined = Membership{RoomID: roomID, Members: room.AddMember(name)}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("name", name).Msg("joined room")
	return res, nil
}

// Leave removes the connection's name from its room and collects the room when it
// becomes empty.
func (o *Orchestrator) Leave(sid core.SessionID) (Membership, error) {
	conn, ok := o.Registry.Lookup(sid)
	if !ok {
		return Membership{}, core.ErrSessionNotFound
	}
	if !conn.Joined() {
		return Membership{}, core.ErrNotJoined
	}
	o.Registry.SetRoom(sid, "")
	o.Registry.SetTyping(sid, false)

	res := Membership{RoomID: conn.Room, Members: []string{}}
	if room, ok := o.Rooms.Get(conn.Room); ok {
		res.Members = room.RemoveMember(conn.Name)
		if len(res.Members) == 0 {
			res.Deleted = o.Rooms.DeleteIfEmpty(conn.Room)
		}
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(conn.Room)).Bool("room_deleted", res.Deleted).Msg("left room")
	return res, nil
}

// Rename changes the display name. When joined, the member set swaps old for new
// and the returned Membership carries the room; otherwise RoomID is empty.
func (o *Orchestrator) Rename(sid core.SessionID, newName string) (Membership, error) {
	name, err := domain.ValidateUsername(newName)
	if err != nil {
		return Membership{}, err
	}
	conn, ok := o.Registry.Lookup(sid)
	if !ok {
		return Membership{}, core.ErrSessionNotFound
	}
	o.Registry.SetName(sid, name)
	if !conn.Joined() {
		return Membership{}, nil
	}
	room, ok := o.Rooms.Get(conn.Room)
	if !ok {
		return Membership{}, nil
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from", conn.Name).Str("to", name).Msg("renamed")
	return Membership{RoomID: conn.Room, Members: room.RenameMember(conn.Name, name)}, nil
}

// SetTyping records the typing hint. The caller needs to be known, not joined.
func (o *Orchestrator) SetTyping(sid core.SessionID, typing bool) error {
	if _, ok := o.Registry.SetTyping(sid, typing); !ok {
		return core.ErrSessionNotFound
	}
	return nil
}
