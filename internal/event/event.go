// Package event defines the notifications emitted by successful engine
// operations and the journal records they are stored as.
package event

import (
	"time"

	"quorumgate/internal/signer"
)

// Type names a notification.
type Type string

const (
	ActionSubmitted Type = "action.submitted"
	Confirmed       Type = "action.confirmed"
	Revoked         Type = "action.revoked"
	Executed        Type = "action.executed"
	SignerAdded     Type = "signer.added"
	SignerRemoved   Type = "signer.removed"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case ActionSubmitted, Confirmed, Revoked, Executed, SignerAdded, SignerRemoved:
		return true
	}
	return false
}

// Event is one notification. Fields that do not apply to the type are zero.
type Event struct {
	Type     Type
	Caller   signer.ID // principal that invoked the operation
	ActionID uint64
	Signer   signer.ID // confirming, revoking, added, or removed signer
	Target   string
	Value    uint64
	Payload  []byte
	// Derived marks events produced as a side effect of another event in the
	// same operation, such as revocations caused by a signer removal.
	// Replaying the primary event reproduces them.
	Derived bool
}

// Record is an event as stored in a journal.
type Record struct {
	Seq        uint64 // 1-based, assigned by the journal
	ID         string
	RecordedAt time.Time
	Event
}
