package engine

import (
	"context"
	"log"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"quorumgate/internal/confirmation"
	"quorumgate/internal/effect"
	"quorumgate/internal/event"
	"quorumgate/internal/ledger"
	"quorumgate/internal/signer"
	"quorumgate/internal/storage"
)

const tracerName = "quorumgate/internal/engine"

// Engine guards one protected resource.
type Engine struct {
	mu        sync.RWMutex // serializes mutations; readers see committed state
	name      string
	roster    *signer.Roster
	ledger    *ledger.Ledger
	tracker   *confirmation.Tracker
	handler   effect.Handler
	publisher Publisher
	journal   storage.Journal
	policy    RemovedSignerPolicy
	tracer    trace.Tracer
	replaying bool  // set while Replay rebuilds state; effects and journaling are skipped
	halted    error // journal failure that stopped mutations
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where notifications go after each committed operation.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithJournal sets the journal every committed operation is appended to
// before it is acknowledged.
func WithJournal(j storage.Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithRemovedSignerPolicy sets how a removed signer's confirmations are treated.
func WithRemovedSignerPolicy(p RemovedSignerPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithName sets the name used in log lines.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for effect spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// New creates an engine with the given roster and threshold. A nil handler
// accepts every execution without doing anything.
func New(signers []signer.ID, required int, handler effect.Handler, opts ...Option) (*Engine, error) {
	roster, err := signer.NewRoster(signers, required)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		handler = effect.Noop
	}

	e := &Engine{
		name:    "engine",
		roster:  roster,
		ledger:  ledger.New(),
		tracker: confirmation.NewTracker(),
		handler: handler,
		policy:  KeepConfirmations,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the removed-signer policy in effect.
func (e *Engine) Policy() RemovedSignerPolicy {
	return e.policy
}

// publish hands committed events to the publisher. It runs with the write
// lock held so publishers observe events in commit order. Publisher errors
// are logged; the operation has already committed.
func (e *Engine) publish(ctx context.Context, events []event.Event) {
	if e.publisher == nil || e.replaying {
		return
	}
	for _, ev := range events {
		if err := e.publisher.Publish(ctx, ev); err != nil {
			log.Printf("[%s] publish %s for action %d failed: %v", e.name, ev.Type, ev.ActionID, err)
		}
	}
}

// Halted returns the journal error that stopped the engine, or nil.
func (e *Engine) Halted(ctx context.Context) error {
	var err error
	_ = e.view(ctx, func() error {
		err = e.halted
		return nil
	})
	return err
}

// SignerCount returns the number of signers.
func (e *Engine) SignerCount(ctx context.Context) int {
	var n int
	_ = e.view(ctx, func() error {
		n = e.roster.Len()
		return nil
	})
	return n
}

// IsSigner reports whether id is on the roster.
func (e *Engine) IsSigner(ctx context.Context, id signer.ID) bool {
	var ok bool
	_ = e.view(ctx, func() error {
		ok = e.roster.Contains(id)
		return nil
	})
	return ok
}

// Signers returns the roster in enumeration order.
func (e *Engine) Signers(ctx context.Context) []signer.ID {
	var out []signer.ID
	_ = e.view(ctx, func() error {
		out = e.roster.Members()
		return nil
	})
	return out
}

// RequiredConfirmations returns the threshold fixed at construction.
func (e *Engine) RequiredConfirmations(ctx context.Context) int {
	var n int
	_ = e.view(ctx, func() error {
		n = e.roster.Required()
		return nil
	})
	return n
}

// ActionCount returns the number of actions ever submitted.
func (e *Engine) ActionCount(ctx context.Context) uint64 {
	var n uint64
	_ = e.view(ctx, func() error {
		n = e.ledger.Len()
		return nil
	})
	return n
}

// Action returns a copy of the action with its current confirmation count.
func (e *Engine) Action(ctx context.Context, id uint64) (ledger.Action, error) {
	var a ledger.Action
	err := e.view(ctx, func() error {
		var err error
		a, err = e.ledger.Get(id)
		a.Confirmations = e.tracker.Count(id)
		return err
	})
	return a, err
}

// Actions returns up to limit actions starting at offset.
func (e *Engine) Actions(ctx context.Context, offset uint64, limit int) []ledger.Action {
	var out []ledger.Action
	_ = e.view(ctx, func() error {
		out = e.ledger.List(offset, limit)
		for i := range out {
			out[i].Confirmations = e.tracker.Count(out[i].ID)
		}
		return nil
	})
	return out
}

// PendingActions returns every action that has not executed.
func (e *Engine) PendingActions(ctx context.Context) []ledger.Action {
	var out []ledger.Action
	_ = e.view(ctx, func() error {
		for _, a := range e.ledger.List(0, 0) {
			if a.Pending() {
				a.Confirmations = e.tracker.Count(a.ID)
				out = append(out, a)
			}
		}
		return nil
	})
	return out
}

// ConfirmationCount returns the number of confirmations recorded for id.
func (e *Engine) ConfirmationCount(ctx context.Context, id uint64) (int, error) {
	var n int
	err := e.view(ctx, func() error {
		if !e.ledger.Exists(id) {
			return ledger.UnknownAction(id)
		}
		n = e.tracker.Count(id)
		return nil
	})
	return n, err
}

// IsConfirmed reports whether s has confirmed id.
func (e *Engine) IsConfirmed(ctx context.Context, id uint64, s signer.ID) (bool, error) {
	var ok bool
	err := e.view(ctx, func() error {
		if !e.ledger.Exists(id) {
			return ledger.UnknownAction(id)
		}
		ok = e.tracker.Confirmed(id, s)
		return nil
	})
	return ok, err
}

// Confirmers returns the signers that have confirmed id, sorted.
func (e *Engine) Confirmers(ctx context.Context, id uint64) ([]signer.ID, error) {
	var out []signer.ID
	err := e.view(ctx, func() error {
		if !e.ledger.Exists(id) {
			return ledger.UnknownAction(id)
		}
		out = e.tracker.Signers(id)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, err
}
