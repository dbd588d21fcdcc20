package engine

import (
	"context"

	"quorumgate/internal/event"
	"quorumgate/internal/guard"
	"quorumgate/internal/signer"
)

// Submit proposes a new action and returns its identifier.
func (e *Engine) Submit(ctx context.Context, caller signer.ID, target string, value uint64, payload []byte) (uint64, error) {
	var id uint64
	err := e.update(ctx, func(ctx context.Context, tx *txn) error {
		if err := guard.Signer(e.roster, caller)(); err != nil {
			return err
		}

		n := e.ledger.Len()
		aid, err := e.ledger.Append(target, value, payload)
		if err != nil {
			return err
		}
		tx.onRollback(func() { e.ledger.Truncate(n) })

		tx.emit(event.Event{
			Type:     event.ActionSubmitted,
			Caller:   caller,
			ActionID: aid,
			Target:   target,
			Value:    value,
			Payload:  append([]byte(nil), payload...),
		})
		id = aid
		return nil
	})
	return id, err
}

// Confirm records caller's approval of a pending action.
func (e *Engine) Confirm(ctx context.Context, caller signer.ID, id uint64) error {
	return e.update(ctx, func(ctx context.Context, tx *txn) error {
		if err := guard.All(
			guard.Signer(e.roster, caller),
			guard.ActionExists(e.ledger, id),
			guard.NotExecuted(e.ledger, id),
			guard.NotConfirmed(e.tracker, id, caller),
		); err != nil {
			return err
		}

		if err := e.tracker.Confirm(id, caller); err != nil {
			return err
		}
		tx.onRollback(func() { _ = e.tracker.Revoke(id, caller) })

		tx.emit(event.Event{
			Type:     event.Confirmed,
			Caller:   caller,
			ActionID: id,
			Signer:   caller,
		})
		return nil
	})
}

// Revoke withdraws caller's earlier approval of a pending action.
func (e *Engine) Revoke(ctx context.Context, caller signer.ID, id uint64) error {
	return e.update(ctx, func(ctx context.Context, tx *txn) error {
		if err := guard.All(
			guard.Signer(e.roster, caller),
			guard.ActionExists(e.ledger, id),
			guard.NotExecuted(e.ledger, id),
			guard.ConfirmedBy(e.tracker, id, caller),
		); err != nil {
			return err
		}

		if err := e.tracker.Revoke(id, caller); err != nil {
			return err
		}
		tx.onRollback(func() { _ = e.tracker.Confirm(id, caller) })

		tx.emit(event.Event{
			Type:     event.Revoked,
			Caller:   caller,
			ActionID: id,
			Signer:   caller,
		})
		return nil
	})
}
