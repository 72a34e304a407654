package server

import "sync/atomic"

// State is the lifecycle position of a Server. States only move forward.
type State int32

const (
	StateUnstarted State = iota
	StateAddressResolved
	StateListenerBound
	StateAccepting
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateAddressResolved:
		return "address_resolved"
	case StateListenerBound:
		return "listener_bound"
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type stateMachine struct {
	v atomic.Int32
}

func (m *stateMachine) load() State {
	return State(m.v.Load())
}

// advance moves to next if it is ahead of the current state and reports
// the state it moved from. Moving backwards is a no-op.
func (m *stateMachine) advance(next State) (State, bool) {
	for {
		cur := m.v.Load()
		if State(cur) >= next {
			return State(cur), false
		}
		if m.v.CompareAndSwap(cur, int32(next)) {
			return State(cur), true
		}
	}
}
