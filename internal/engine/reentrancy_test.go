package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"quorumgate/internal/effect"
	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/event"
	"quorumgate/internal/signer"
)

// quorate submits an action and confirms it with S1 and S2.
func quorate(t *testing.T, e *Engine, target string) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := e.Submit(ctx, "S1", target, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []signer.ID{"S1", "S2"} {
		if err := e.Confirm(ctx, s, id); err != nil {
			t.Fatal(err)
		}
	}
	return id
}

func TestReentrantExecute_SameAction(t *testing.T) {
	var (
		e        *Engine
		innerErr error
	)
	e, _ = newTestEngine(t, effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
		innerErr = e.Execute(ctx, "S2", 0)
		return nil
	}))
	id := quorate(t, e, "T")

	if err := e.Execute(context.Background(), "S1", id); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !errors.Is(innerErr, apperrors.ErrAlreadyExecuted) {
		t.Fatalf("re-entrant Execute() error = %v, want AlreadyExecuted", innerErr)
	}
}

func TestReentrantCalls_CommitWithOuter(t *testing.T) {
	var e *Engine
	e, pub := newTestEngine(t, effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
		if call.Target != "outer" {
			return nil
		}
		id, err := e.Submit(ctx, "S3", "inner", 5, nil)
		if err != nil {
			return err
		}
		if n := e.ActionCount(ctx); n != 2 {
			t.Errorf("ActionCount() inside handler = %d, want 2", n)
		}
		return e.Confirm(ctx, "S3", id)
	}))
	id := quorate(t, e, "outer")
	before := len(pub.types())

	if err := e.Execute(context.Background(), "S1", id); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	ctx := context.Background()
	if e.ActionCount(ctx) != 2 {
		t.Fatalf("ActionCount() = %d, want 2", e.ActionCount(ctx))
	}
	if ok, _ := e.IsConfirmed(ctx, 1, "S3"); !ok {
		t.Fatal("inner confirmation lost")
	}

	want := []event.Type{event.ActionSubmitted, event.Confirmed, event.Executed}
	if got := pub.types()[before:]; !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestReentrantCalls_RolledBackWithOuter(t *testing.T) {
	boom := errors.New("effect failed")
	var e *Engine
	e, pub := newTestEngine(t, effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
		id, err := e.Submit(ctx, "S3", "inner", 5, nil)
		if err != nil {
			return err
		}
		if err := e.Confirm(ctx, "S3", id); err != nil {
			return err
		}
		if err := e.AddSigner(ctx, "S3", "S9"); err != nil {
			return err
		}
		if err := e.Revoke(ctx, "S1", 0); !errors.Is(err, apperrors.ErrAlreadyExecuted) {
			t.Errorf("Revoke() of executing action error = %v", err)
		}
		return boom
	}))
	id := quorate(t, e, "outer")
	before := takeSnapshot(e)
	eventsBefore := len(pub.types())

	err := e.Execute(context.Background(), "S1", id)
	if !errors.Is(err, boom) || !errors.Is(err, apperrors.ErrExecutionFailed) {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := takeSnapshot(e); !reflect.DeepEqual(got, before) {
		t.Fatalf("state changed: %+v -> %+v", before, got)
	}
	if e.IsSigner(context.Background(), "S9") {
		t.Fatal("re-entrant AddSigner survived rollback")
	}
	if len(pub.types()) != eventsBefore {
		t.Fatal("rolled back operation published events")
	}
	checkInvariants(t, e)
}

func TestReentrantFailure_OnlyUndoesItself(t *testing.T) {
	var e *Engine
	e, _ = newTestEngine(t, effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
		if call.Target != "outer" {
			return nil
		}
		if _, err := e.Submit(ctx, "S3", "inner", 1, nil); err != nil {
			return err
		}
		// Fails without quorum; the submit above stays.
		if err := e.Execute(ctx, "S3", 1); !errors.Is(err, apperrors.ErrQuorumNotMet) {
			t.Errorf("inner Execute() error = %v, want QuorumNotMet", err)
		}
		return nil
	}))
	id := quorate(t, e, "outer")

	if err := e.Execute(context.Background(), "S1", id); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	a, err := e.Action(context.Background(), 1)
	if err != nil || a.Executed {
		t.Fatalf("inner action = %+v, %v", a, err)
	}
}

func TestStaleContextDoesNotJoin(t *testing.T) {
	var (
		e     *Engine
		saved context.Context
	)
	e, _ = newTestEngine(t, effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
		saved = ctx
		return nil
	}))
	id := quorate(t, e, "T")
	if err := e.Execute(context.Background(), "S1", id); err != nil {
		t.Fatal(err)
	}

	if tx, ok := e.join(saved); ok {
		tx.mu.Unlock()
		t.Fatal("finished transaction still joinable")
	}
	if _, err := e.Submit(saved, "S1", "later", 1, nil); err != nil {
		t.Fatalf("Submit() with stale context error = %v", err)
	}
}

func TestOtherEngineDoesNotJoin(t *testing.T) {
	other, _ := newTestEngine(t, nil)
	var e *Engine
	e, _ = newTestEngine(t, effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
		// A different engine takes its own lock.
		_, err := other.Submit(ctx, "S1", "x", 1, nil)
		return err
	}))
	id := quorate(t, e, "T")
	if err := e.Execute(context.Background(), "S1", id); err != nil {
		t.Fatal(err)
	}
	if other.ActionCount(context.Background()) != 1 {
		t.Fatal("expected submit on other engine")
	}
}

func TestReentrantExecute_OtherActionRefused(t *testing.T) {
	boom := errors.New("outer effect failed")
	treasury := effect.NewTreasury(10)
	mux := effect.NewMux(treasury)

	var (
		e        *Engine
		inner    uint64
		innerErr error
	)
	mux.Handle("outer", effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
		innerErr = e.Execute(ctx, "S2", inner)
		return boom
	}))
	e, _ = newTestEngine(t, mux)

	inner = quorate(t, e, "alice")
	outer := quorate(t, e, "outer")

	err := e.Execute(context.Background(), "S1", outer)
	if !errors.Is(err, boom) {
		t.Fatalf("outer Execute() error = %v, want %v", err, boom)
	}
	if !errors.Is(innerErr, apperrors.ErrReentrantExecution) {
		t.Fatalf("nested Execute() error = %v, want ReentrantExecution", innerErr)
	}
	if got := apperrors.GetCode(innerErr); got != apperrors.CodeReentrantExecution {
		t.Fatalf("nested Execute() code = %s", got)
	}
	if got := treasury.AccountBalance("alice"); got != 0 {
		t.Fatalf("inner effect ran inside the failed execution: alice = %d", got)
	}

	a, err := e.Action(context.Background(), inner)
	if err != nil || a.Executed {
		t.Fatalf("inner action = %+v, %v", a, err)
	}

	// Executed on its own, the inner effect runs exactly once.
	if err := e.Execute(context.Background(), "S1", inner); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := treasury.AccountBalance("alice"); got != 1 {
		t.Fatalf("alice = %d, want 1", got)
	}
	if err := e.Execute(context.Background(), "S1", inner); !errors.Is(err, apperrors.ErrAlreadyExecuted) {
		t.Fatalf("second Execute() error = %v", err)
	}
	if got := treasury.AccountBalance("alice"); got != 1 {
		t.Fatalf("alice = %d after second Execute, want 1", got)
	}
	checkInvariants(t, e)
}

func TestJoinedCalls_FromHandlerGoroutines(t *testing.T) {
	const workers = 16

	tests := []struct {
		name    string
		fail    bool
		actions uint64
	}{
		{"commit", false, 1 + workers},
		{"rollback", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boom := errors.New("effect failed")
			var e *Engine
			e, pub := newTestEngine(t, effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
				var wg sync.WaitGroup
				errs := make([]error, workers)
				for i := 0; i < workers; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						id, err := e.Submit(ctx, "S3", fmt.Sprintf("w%d", i), 1, nil)
						if err != nil {
							errs[i] = err
							return
						}
						if err := e.Confirm(ctx, "S1", id); err != nil {
							errs[i] = err
							return
						}
						_ = e.PendingActions(ctx)
						errs[i] = e.Confirm(ctx, "S2", id)
					}(i)
				}
				wg.Wait()
				if err := errors.Join(errs...); err != nil {
					return err
				}
				if tt.fail {
					return boom
				}
				return nil
			}))
			id := quorate(t, e, "outer")
			eventsBefore := len(pub.types())

			err := e.Execute(context.Background(), "S1", id)
			if tt.fail != (err != nil) {
				t.Fatalf("Execute() error = %v", err)
			}

			ctx := context.Background()
			if got := e.ActionCount(ctx); got != tt.actions {
				t.Fatalf("ActionCount() = %d, want %d", got, tt.actions)
			}
			for i := uint64(1); i < tt.actions; i++ {
				if n, _ := e.ConfirmationCount(ctx, i); n != 2 {
					t.Fatalf("action %d has %d confirmations, want 2", i, n)
				}
			}
			if tt.fail && len(pub.types()) != eventsBefore {
				t.Fatal("rolled back operation published events")
			}
			if !tt.fail {
				// Each worker submits and confirms twice; the outer execution adds one.
				if got := len(pub.types()) - eventsBefore; got != 3*workers+1 {
					t.Fatalf("published %d events, want %d", got, 3*workers+1)
				}
			}
			checkInvariants(t, e)
		})
	}
}

func TestJoinedCalls_OutsideCallerWaitsForCommit(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var e *Engine
	e, _ = newTestEngine(t, effect.HandlerFunc(func(ctx context.Context, call effect.Call) error {
		if call.Target != "outer" {
			return nil
		}
		close(started)
		<-release
		_, err := e.Submit(ctx, "S3", "inner", 1, nil)
		return err
	}))
	id := quorate(t, e, "outer")

	done := make(chan error, 1)
	go func() { done <- e.Execute(context.Background(), "S1", id) }()
	<-started

	// A caller without the handler's context blocks until the execution commits.
	submitted := make(chan uint64, 1)
	go func() {
		n, _ := e.Submit(context.Background(), "S2", "outside", 1, nil)
		submitted <- n
	}()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := <-submitted; got != 2 {
		t.Fatalf("outside Submit() id = %d, want 2", got)
	}
}
