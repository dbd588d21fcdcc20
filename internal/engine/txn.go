package engine

import (
	"context"
	"log"
	"sync"

	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/event"
)

type txnKey struct{}

// txn is one all-or-nothing engine operation.
//
// mu guards every field and the engine state while the transaction runs.
// The owning goroutine holds it except while an effect handler runs, so
// calls joined from the handler, or from goroutines it starts, take turns.
type txn struct {
	mu       sync.Mutex
	engine   *Engine
	undo     []func()
	events   []event.Event
	depth    int  // number of joined calls currently running
	effected bool // an effect handler has completed inside this transaction
	done     bool
}

// onRollback records the inverse of a change that was just applied.
func (tx *txn) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *txn) emit(ev event.Event) {
	tx.events = append(tx.events, ev)
}

// rollbackTo undoes every change recorded after mark, newest first, and
// drops the events emitted after evMark.
func (tx *txn) rollbackTo(mark, evMark int) {
	for i := len(tx.undo) - 1; i >= mark; i-- {
		tx.undo[i]()
	}
	tx.undo = tx.undo[:mark]
	tx.events = tx.events[:evMark]
}

// join returns the transaction carried by ctx, locked, if it belongs to e
// and is still running. The caller must unlock it.
func (e *Engine) join(ctx context.Context) (*txn, bool) {
	tx, ok := ctx.Value(txnKey{}).(*txn)
	if !ok || tx.engine != e {
		return nil, false
	}
	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return nil, false
	}
	return tx, true
}

// update runs fn as one serialized, all-or-nothing mutation. A call made
// from inside a running transaction joins it; if fn fails, only the changes
// fn itself made are undone.
//
// Committed events are appended to the journal before the lock is released.
// If that append fails the transaction is rolled back, unless an effect has
// already run, in which case the engine stops accepting mutations.
func (e *Engine) update(ctx context.Context, fn func(ctx context.Context, tx *txn) error) error {
	if tx, ok := e.join(ctx); ok {
		defer tx.mu.Unlock()
		mark, evMark := len(tx.undo), len(tx.events)
		tx.depth++
		err := fn(ctx, tx)
		tx.depth--
		if err != nil {
			tx.rollbackTo(mark, evMark)
			return err
		}
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted != nil {
		return apperrors.Wrap(apperrors.CodeJournalFailed, "engine halted after a journal failure", e.halted)
	}

	tx := &txn{engine: e}
	tx.mu.Lock()
	defer func() {
		tx.done = true
		tx.mu.Unlock()
	}()

	if err := fn(context.WithValue(ctx, txnKey{}, tx), tx); err != nil {
		tx.rollbackTo(0, 0)
		return err
	}
	if err := e.record(ctx, tx); err != nil {
		return err
	}
	e.publish(ctx, tx.events)
	return nil
}

// record appends the events of a successful transaction to the journal.
func (e *Engine) record(ctx context.Context, tx *txn) error {
	if e.journal == nil || e.replaying || len(tx.events) == 0 {
		return nil
	}
	// The operation is complete; a cancelled request must not drop its record.
	if _, err := e.journal.AppendBatch(context.WithoutCancel(ctx), tx.events); err != nil {
		if tx.effected {
			e.halted = err
			log.Printf("[%s] journal append failed after an effect ran, refusing further changes: %v", e.name, err)
			return apperrors.Wrap(apperrors.CodeJournalFailed, "journal append failed after the effect ran; engine halted", err)
		}
		tx.rollbackTo(0, 0)
		return apperrors.Wrap(apperrors.CodeJournalFailed, "journal append failed; operation rolled back", err)
	}
	return nil
}

// view runs fn against a committed snapshot of the engine state. From
// inside a running transaction it reads that transaction's state.
func (e *Engine) view(ctx context.Context, fn func() error) error {
	if tx, ok := e.join(ctx); ok {
		defer tx.mu.Unlock()
		return fn()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn()
}
