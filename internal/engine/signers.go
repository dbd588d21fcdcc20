package engine

import (
	"context"

	"quorumgate/internal/event"
	"quorumgate/internal/guard"
	"quorumgate/internal/signer"
)

// AddSigner adds newSigner to the roster.
func (e *Engine) AddSigner(ctx context.Context, caller, newSigner signer.ID) error {
	return e.update(ctx, func(ctx context.Context, tx *txn) error {
		if err := guard.Signer(e.roster, caller)(); err != nil {
			return err
		}
		if err := e.roster.Add(newSigner); err != nil {
			return err
		}
		tx.onRollback(func() { e.roster.Discard(newSigner) })

		tx.emit(event.Event{
			Type:   event.SignerAdded,
			Caller: caller,
			Signer: newSigner,
		})
		return nil
	})
}

// RemoveSigner removes s from the roster. Under DiscardConfirmations, s's
// confirmations on pending actions are revoked in the same operation.
func (e *Engine) RemoveSigner(ctx context.Context, caller, s signer.ID) error {
	return e.update(ctx, func(ctx context.Context, tx *txn) error {
		if err := guard.Signer(e.roster, caller)(); err != nil {
			return err
		}
		pos, err := e.roster.Remove(s)
		if err != nil {
			return err
		}
		tx.onRollback(func() { e.roster.Restore(s, pos) })

		if e.policy == DiscardConfirmations {
			e.discardConfirmations(tx, caller, s)
		}

		tx.emit(event.Event{
			Type:   event.SignerRemoved,
			Caller: caller,
			Signer: s,
		})
		return nil
	})
}

func (e *Engine) discardConfirmations(tx *txn, caller, s signer.ID) {
	var pending []uint64
	for id := uint64(0); id < e.ledger.Len(); id++ {
		if !e.ledger.Executed(id) {
			pending = append(pending, id)
		}
	}

	for _, id := range e.tracker.ConfirmedBy(s, pending) {
		if err := e.tracker.Revoke(id, s); err != nil {
			continue
		}
		tx.onRollback(func() { _ = e.tracker.Confirm(id, s) })
		tx.emit(event.Event{
			Type:     event.Revoked,
			Caller:   caller,
			ActionID: id,
			Signer:   s,
			Derived:  true,
		})
	}
}
