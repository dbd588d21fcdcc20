package engine

import (
	"context"
	"fmt"

	"quorumgate/internal/effect"
	"quorumgate/internal/event"
	"quorumgate/internal/signer"
)

// Replay rebuilds an engine from its genesis roster and a journal of
// committed events. Effects are not re-invoked and nothing is published
// while replaying. Derived events are skipped because replaying the event
// that caused them reproduces them.
func Replay(ctx context.Context, signers []signer.ID, required int, handler effect.Handler, records []event.Record, opts ...Option) (*Engine, error) {
	e, err := New(signers, required, handler, opts...)
	if err != nil {
		return nil, fmt.Errorf("build genesis roster: %w", err)
	}

	e.replaying = true
	defer func() { e.replaying = false }()

	for _, rec := range records {
		if rec.Derived {
			continue
		}
		if err := e.apply(ctx, rec.Event); err != nil {
			return nil, fmt.Errorf("replay event %d (%s): %w", rec.Seq, rec.Type, err)
		}
	}
	return e, nil
}

func (e *Engine) apply(ctx context.Context, ev event.Event) error {
	switch ev.Type {
	case event.ActionSubmitted:
		id, err := e.Submit(ctx, ev.Caller, ev.Target, ev.Value, ev.Payload)
		if err != nil {
			return err
		}
		if id != ev.ActionID {
			return fmt.Errorf("journal out of order: submitted action %d, journal says %d", id, ev.ActionID)
		}
		return nil
	case event.Confirmed:
		return e.Confirm(ctx, ev.Signer, ev.ActionID)
	case event.Revoked:
		return e.Revoke(ctx, ev.Signer, ev.ActionID)
	case event.Executed:
		return e.Execute(ctx, ev.Caller, ev.ActionID)
	case event.SignerAdded:
		return e.AddSigner(ctx, ev.Caller, ev.Signer)
	case event.SignerRemoved:
		return e.RemoveSigner(ctx, ev.Caller, ev.Signer)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}
