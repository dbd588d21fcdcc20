package engine

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"quorumgate/internal/effect"
	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/event"
	"quorumgate/internal/guard"
	"quorumgate/internal/ledger"
	"quorumgate/internal/quorum"
	"quorumgate/internal/signer"
)

// Execute runs a pending action that has reached quorum.
//
// The action is marked executed before the effect handler runs. If the
// handler fails, the flag and everything the handler changed through the
// engine are rolled back and the error is ExecutionFailed wrapping the
// handler's error.
//
// A handler may call back into the engine with the context it was given;
// those calls join the running operation. Executing a different action from
// inside a handler is refused with ReentrantExecution, since its effect
// could not be undone if the outer execution failed.
func (e *Engine) Execute(ctx context.Context, caller signer.ID, id uint64) error {
	return e.update(ctx, func(ctx context.Context, tx *txn) error {
		if err := guard.All(
			guard.Signer(e.roster, caller),
			guard.ActionExists(e.ledger, id),
			guard.NotExecuted(e.ledger, id),
		); err != nil {
			return err
		}

		result := quorum.Evaluate(e.tracker.Count(id), e.roster.Required())
		if !result.Met {
			return apperrors.WithMetadata(apperrors.CodeQuorumNotMet,
				fmt.Sprintf("action %d: %s", id, result.ErrorMessage),
				map[string]string{
					"action_id":     strconv.FormatUint(id, 10),
					"confirmations": strconv.Itoa(result.Confirmations),
					"required":      strconv.Itoa(result.Required),
				})
		}

		if tx.depth > 0 {
			return apperrors.WithMetadata(apperrors.CodeReentrantExecution,
				fmt.Sprintf("action %d: cannot execute from inside an effect handler", id),
				map[string]string{"action_id": strconv.FormatUint(id, 10)})
		}

		if err := e.ledger.MarkExecuted(id); err != nil {
			return err
		}
		tx.onRollback(func() { e.ledger.Reopen(id) })

		action, err := e.ledger.Get(id)
		if err != nil {
			return err
		}
		if !e.replaying {
			// Joined calls from the handler take the transaction lock.
			tx.mu.Unlock()
			err := e.invoke(ctx, action)
			tx.mu.Lock()
			if err != nil {
				failed := apperrors.Wrap(apperrors.CodeExecutionFailed,
					fmt.Sprintf("execute action %d", id), err)
				failed.Metadata = map[string]string{
					"action_id": strconv.FormatUint(id, 10),
					"target":    action.Target,
				}
				return failed
			}
			tx.effected = true
		}

		tx.emit(event.Event{
			Type:     event.Executed,
			Caller:   caller,
			ActionID: id,
			Target:   action.Target,
			Value:    action.Value,
		})
		return nil
	})
}

// invoke calls the effect handler, converting a panic into an error so the
// execution is rolled back like any other failure.
func (e *Engine) invoke(ctx context.Context, action ledger.Action) (err error) {
	ctx, span := e.tracer.Start(ctx, "engine.effect",
		trace.WithAttributes(
			attribute.Int64("quorumgate.action_id", int64(action.ID)),
			attribute.String("quorumgate.target", action.Target),
		))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect handler panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return e.handler.Invoke(ctx, effect.Call{
		Target:  action.Target,
		Value:   action.Value,
		Payload: action.Payload,
	})
}
