// internal/poller/state.go
package poller

import "fmt"

// State is the field-bus session state. Exactly one value is active.
type State uint8

const (
	Initializing State = iota
	Idle
	ReadyToRead
	ReadSucceeded
	ReadFailed
	ConnectSucceeded
	ConnectFailed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Idle:
		return "idle"
	case ReadyToRead:
		return "ready_to_read"
	case ReadSucceeded:
		return "read_succeeded"
	case ReadFailed:
		return "read_failed"
	case ConnectSucceeded:
		return "connect_succeeded"
	case ConnectFailed:
		return "connect_failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// allStates lists every State in declaration order.
var allStates = []State{
	Initializing, Idle, ReadyToRead, ReadSucceeded, ReadFailed, ConnectSucceeded, ConnectFailed,
}

// Action is the single thing a tick may dispatch.
type Action uint8

const (
	ActionNone Action = iota
	ActionConnect
	ActionRead
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionConnect:
		return "connect"
	case ActionRead:
		return "read"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// NextAction is the transition table.
// It returns the action for this tick and the state to hold before dispatch.
// sessionOpen is consulted only in ReadFailed.
func NextAction(s State, sessionOpen bool) (Action, State) {
	switch s {
	case Initializing, ConnectFailed:
		return ActionConnect, s
	case ConnectSucceeded, ReadSucceeded, ReadyToRead:
		return ActionRead, s
	case ReadFailed:
		if sessionOpen {
			// Session survived the failed read: re-read on the next tick.
			return ActionNone, ReadyToRead
		}
		return ActionConnect, s
	case Idle:
		return ActionNone, Idle
	default:
		panic(fmt.Sprintf("poller: unknown state %d", uint8(s)))
	}
}
