package client

// Status is the lifecycle state of a relay session. A session cycles
// Connecting -> Connected -> BackingOff until it is closed, when it
// returns to Disconnected for good.
type Status int32

const (
	Disconnected Status = iota
	Connecting
	Connected
	BackingOff
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case BackingOff:
		return "backing off"
	}
	return "unknown"
}
