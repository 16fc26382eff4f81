package gateway

import "strconv"

// State is the lifecycle phase of a gateway connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHandshake
	StateReady
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

var transitions = map[State][]State{
	StateDisconnected:      {StateConnecting},
	StateConnecting:        {StateAwaitingHandshake, StateDisconnected},
	StateAwaitingHandshake: {StateReady, StateClosing},
	StateReady:             {StateClosing},
	StateClosing:           {StateDisconnected},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
