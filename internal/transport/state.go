package transport

import "time"

// State is the lifecycle state of the Manager's socket.
type State int

// Socket states.
const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateManuallyClosed
	StateFailed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateManuallyClosed:
		return "manually_closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the Manager waits for an explicit Connect in this state.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateManuallyClosed || s == StateFailed
}

var allStates = []string{
	StateIdle.String(),
	StateConnecting.String(),
	StateOpen.String(),
	StateReconnecting.String(),
	StateManuallyClosed.String(),
	StateFailed.String(),
}

// Policy bounds automatic reconnection after an abnormal close.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy retries five times, waiting 3s, 6s, 9s, 12s and 15s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: 3 * time.Second}
}

// Delay returns the wait before retry number attempt (1-based). Growth is linear.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}
