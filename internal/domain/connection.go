package domain

import "time"

// Connection is the participant record of one live network session.
// No transport or lifecycle logic here.
type Connection struct {
	Name        string
	Room        RoomID
	CallRoom    RoomID
	Typing      bool
	InCall      bool
	CameraOn    bool
	MicOn       bool
	ConnectedAt time.Time
}

// NewConnection avoids raw literals in adapters and keeps construction obvious.
func NewConnection(now time.Time) *Connection {
	return &Connection{ConnectedAt: now}
}

func (c *Connection) Joined() bool { return c.Room != "" }
