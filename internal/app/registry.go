package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Conn   *domain.Connection
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Registry keeps one participant record per live connection.
// Operations on an unknown sid never fail loudly: they report ok=false.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		now:      time.Now,
	}
}

// Register creates a fresh record for sid. Signal and cancel may be nil.
func (r *Registry) Register(sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc) (domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; ok {
		return domain.Connection{}, core.ErrAlreadyRegistered
	}
	e := &sessionEntry{Conn: domain.NewConnection(r.now()), Signal: sig, Cancel: cancel}
	r.sessions[sid] = e
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered connection")
	return *e.Conn, nil
}

func (r *Registry) Lookup(sid core.SessionID) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return *e.Conn, true
	}
	return domain.Connection{}, false
}

// Unregister removes the record and hands it back for teardown.
func (r *Registry) Unregister(sid core.SessionID) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered connection")
	return *e.Conn, true
}

func (r *Registry) Signal(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Signal == nil {
		return nil, false
	}
	return e.Signal, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) mutate(sid core.SessionID, fn func(c *domain.Connection)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	fn(e.Conn)
	return true
}

func (r *Registry) SetName(sid core.SessionID, name string) (string, bool) {
	ok := r.mutate(sid, func(c *domain.Connection) { c.Name = name })
	return name, ok
}

func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID) (domain.RoomID, bool) {
	ok := r.mutate(sid, func(c *domain.Connection) { c.Room = room })
	if ok {
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	}
	return room, ok
}

func (r *Registry) SetCallRoom(sid core.SessionID, room domain.RoomID) (domain.RoomID, bool) {
	ok := r.mutate(sid, func(c *domain.Connection) { c.CallRoom = room })
	return room, ok
}

func (r *Registry) SetTyping(sid core.SessionID, typing bool) (bool, bool) {
	ok := r.mutate(sid, func(c *domain.Connection) { c.Typing = typing })
	return typing, ok
}

// SetInCall also resets camera and mic: both on when entering a call, off when leaving.
func (r *Registry) SetInCall(sid core.SessionID, inCall bool) (bool, bool) {
	ok := r.mutate(sid, func(c *domain.Connection) {
		c.InCall = inCall
		c.CameraOn = inCall
		c.MicOn = inCall
	})
	return inCall, ok
}

func (r *Registry) ToggleCamera(sid core.SessionID) (bool, bool) {
	var v bool
	ok := r.mutate(sid, func(c *domain.Connection) {
		c.CameraOn = !c.CameraOn
		v = c.CameraOn
	})
	return v, ok
}

func (r *Registry) ToggleMic(sid core.SessionID) (bool, bool) {
	var v bool
	ok := r.mutate(sid, func(c *domain.Connection) {
		c.MicOn = !c.MicOn
		v = c.MicOn
	})
	return v, ok
}

type regSnap struct {
	SID    core.SessionID
	Signal core.SignalConnection
}

// MembersOfRoom lists the connections whose current room is room.
func (r *Registry) MembersOfRoom(room domain.RoomID) []regSnap {
	return r.filter(func(c *domain.Connection) bool { return room != "" && c.Room == room })
}

// MembersOfCall lists the connections signaling in call room.
func (r *Registry) MembersOfCall(call domain.RoomID) []regSnap {
	return r.filter(func(c *domain.Connection) bool { return call != "" && c.CallRoom == call })
}

func (r *Registry) filter(keep func(c *domain.Connection) bool) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0)
	for sid, e := range r.sessions {
		if keep(e.Conn) {
			out = append(out, regSnap{SID: sid, Signal: e.Signal})
		}
	}
	return out
}

// Cancel fires the connection's cancel func so its pumps wind down.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
