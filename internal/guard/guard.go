// Package guard provides the precondition checks run before any engine
// mutation. Checks hold no state; each one reads the live roster, ledger, or
// tracker when it is evaluated.
package guard

import (
	"fmt"

	"quorumgate/internal/confirmation"
	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/ledger"
	"quorumgate/internal/signer"
)

// Roster is the membership view a guard needs.
type Roster interface {
	Contains(id signer.ID) bool
}

// Ledger is the action-status view a guard needs.
type Ledger interface {
	Exists(id uint64) bool
	Executed(id uint64) bool
}

// Confirmations is the confirmation-record view a guard needs.
type Confirmations interface {
	Confirmed(actionID uint64, s signer.ID) bool
}

// Check is a single deferred precondition.
type Check func() error

// All evaluates checks in order and returns the first failure.
func All(checks ...Check) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// Signer requires caller to be on the roster.
func Signer(r Roster, caller signer.ID) Check {
	return func() error {
		if caller.IsZero() || !r.Contains(caller) {
			return apperrors.WithMetadata(apperrors.CodeNotSigner,
				fmt.Sprintf("%q is not a signer", caller),
				map[string]string{"caller": caller.String()})
		}
		return nil
	}
}

// ActionExists requires id to name a submitted action.
func ActionExists(l Ledger, id uint64) Check {
	return func() error {
		if !l.Exists(id) {
			return ledger.UnknownAction(id)
		}
		return nil
	}
}

// NotExecuted requires the action to still be pending.
func NotExecuted(l Ledger, id uint64) Check {
	return func() error {
		if l.Executed(id) {
			return ledger.AlreadyExecuted(id)
		}
		return nil
	}
}

// NotConfirmed requires caller not to have confirmed the action yet.
func NotConfirmed(c Confirmations, id uint64, caller signer.ID) Check {
	return func() error {
		if c.Confirmed(id, caller) {
			return confirmation.AlreadyConfirmed(id, caller)
		}
		return nil
	}
}

// ConfirmedBy requires caller to have confirmed the action.
func ConfirmedBy(c Confirmations, id uint64, caller signer.ID) Check {
	return func() error {
		if !c.Confirmed(id, caller) {
			return confirmation.NotConfirmed(id, caller)
		}
		return nil
	}
}
