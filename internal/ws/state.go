package ws

// State is the session lifecycle of a connection. It only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateSubscribed
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
