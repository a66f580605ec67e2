package app

import (
	"fmt"

	"github.com/dkeye/CodeRoom/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose send queue is full.
type Policy interface {
	OnBackPressure(sid core.SessionID, event string) BackpressureAction
}

// SimplePolicy kicks slow consumers; their disconnect cleanup runs as usual.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.SessionID, string) BackpressureAction {
	return KickMember
}

// LenientPolicy drops the frame and keeps the connection.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(core.SessionID, string) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the backpressure_policy setting to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return LenientPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown backpressure policy %q", name)
}
