package transport

// State is the connection state. Only the transport's loop changes it.
type State int32

const (
	Idle State = iota
	Connecting
	Open
	Closing
	Closed
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Active reports whether a connection exists or is being established.
func (s State) Active() bool {
	switch s {
	case Connecting, Open, Reconnecting:
		return true
	default:
		return false
	}
}
