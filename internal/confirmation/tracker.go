// Package confirmation tracks which signers have confirmed which actions.
package confirmation

import (
	"fmt"
	"strconv"

	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/signer"
)

// Tracker holds per-action confirmation records. The confirmation count of
// an action is the size of its record set, so record and count can never
// disagree. Thread-safe operations should be handled by the caller.
type Tracker struct {
	records map[uint64]map[signer.ID]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[uint64]map[signer.ID]struct{}),
	}
}

// Confirmed reports whether s has a true record for the action.
func (t *Tracker) Confirmed(actionID uint64, s signer.ID) bool {
	_, ok := t.records[actionID][s]
	return ok
}

// Count returns the number of true records for the action.
func (t *Tracker) Count(actionID uint64) int {
	return len(t.records[actionID])
}

// Signers returns the signers with a true record for the action, in no
// particular order.
func (t *Tracker) Signers(actionID uint64) []signer.ID {
	set := t.records[actionID]
	out := make([]signer.ID, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Confirm sets the (action, signer) record to true.
func (t *Tracker) Confirm(actionID uint64, s signer.ID) error {
	if t.Confirmed(actionID, s) {
		return AlreadyConfirmed(actionID, s)
	}
	set, ok := t.records[actionID]
	if !ok {
		set = make(map[signer.ID]struct{})
		t.records[actionID] = set
	}
	set[s] = struct{}{}
	return nil
}

// Revoke sets the (action, signer) record to false.
func (t *Tracker) Revoke(actionID uint64, s signer.ID) error {
	if !t.Confirmed(actionID, s) {
		return NotConfirmed(actionID, s)
	}
	set := t.records[actionID]
	delete(set, s)
	if len(set) == 0 {
		delete(t.records, actionID)
	}
	return nil
}

// ConfirmedBy returns the ids of actions, among candidates, that s has
// confirmed.
func (t *Tracker) ConfirmedBy(s signer.ID, candidates []uint64) []uint64 {
	var out []uint64
	for _, id := range candidates {
		if t.Confirmed(id, s) {
			out = append(out, id)
		}
	}
	return out
}

// AlreadyConfirmed builds the error for a duplicate confirmation.
func AlreadyConfirmed(actionID uint64, s signer.ID) error {
	return apperrors.WithMetadata(apperrors.CodeAlreadyConfirmed,
		fmt.Sprintf("%s already confirmed action %d", s, actionID),
		map[string]string{"action_id": strconv.FormatUint(actionID, 10), "signer": s.String()})
}

// NotConfirmed builds the error for revoking an absent confirmation.
func NotConfirmed(actionID uint64, s signer.ID) error {
	return apperrors.WithMetadata(apperrors.CodeNotConfirmed,
		fmt.Sprintf("%s has not confirmed action %d", s, actionID),
		map[string]string{"action_id": strconv.FormatUint(actionID, 10), "signer": s.String()})
}
