package session

import "sync/atomic"

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

// stateCell holds the session state. Zero value is StateIdle.
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) Load() State { return State(c.v.Load()) }

func (c *stateCell) Store(s State) { c.v.Store(int32(s)) }
