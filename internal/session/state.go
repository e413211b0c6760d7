package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/omochice/chatanon/internal/transport"
)

// PairingState tracks the server-side matchmaking of this client.
type PairingState int

// Pairing states.
const (
	Disconnected PairingState = iota
	WaitingForPartner
	Paired
)

// String returns the string representation of PairingState.
func (p PairingState) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case WaitingForPartner:
		return "waiting_for_partner"
	case Paired:
		return "paired"
	default:
		return "unknown"
	}
}

// Role attributes an Entry.
type Role int

// Roles.
const (
	RoleSelf Role = iota
	RolePeer
	RoleSystem
	RoleError
)

// String returns the label shown next to an entry.
func (r Role) String() string {
	switch r {
	case RoleSelf:
		return "you"
	case RolePeer:
		return "stranger"
	case RoleSystem:
		return "system"
	case RoleError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one line of the transcript. Entries are never modified once created.
type Entry struct {
	ID        uuid.UUID
	Role      Role
	Content   string
	Timestamp time.Time
}

// Snapshot is a read-only view of the session handed to the UI.
type Snapshot struct {
	Connection  transport.State
	Pairing     PairingState
	OnlineCount int
	Entries     []Entry
}
