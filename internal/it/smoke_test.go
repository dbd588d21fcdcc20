package it

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quorumgate/internal/engine"
	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/event"
	"quorumgate/internal/signer"
)

func startGate(t *testing.T, policy engine.RemovedSignerPolicy) *Gate {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	g := NewGate("gate-it", t.TempDir(), []signer.ID{"alice", "bob", "carol"}, 2)
	g.Policy = policy

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, g.Start(ctx), "Failed to start gate")
	t.Cleanup(func() { _ = g.Stop() })
	return g
}

func TestSmoke_SubmitConfirmExecute(t *testing.T) {
	g := startGate(t, engine.KeepConfirmations)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	alice, err := g.Client("alice")
	require.NoError(t, err)
	bob, err := g.Client("bob")
	require.NoError(t, err)

	id, err := alice.Submit(ctx, "vendor", 250, []byte("invoice-17"))
	require.NoError(t, err)
	require.NoError(t, alice.Confirm(ctx, id))

	err = bob.Execute(ctx, id)
	assert.True(t, errors.Is(err, apperrors.ErrQuorumNotMet), "got %v", err)

	require.NoError(t, bob.Confirm(ctx, id))
	require.NoError(t, bob.Execute(ctx, id))
	assert.Equal(t, uint64(250), g.Treasury.AccountBalance("vendor"))
	assert.Equal(t, uint64(750), g.Treasury.Balance())

	err = alice.Execute(ctx, id)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExecuted), "got %v", err)
}

func TestSmoke_RestartReplaysJournal(t *testing.T) {
	g := startGate(t, engine.DiscardConfirmations)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	alice, err := g.Client("alice")
	require.NoError(t, err)

	require.NoError(t, alice.AddSigner(ctx, "dave"))
	paid, err := alice.Submit(ctx, "vendor", 10, nil)
	require.NoError(t, err)
	open, err := alice.Submit(ctx, "vendor", 20, nil)
	require.NoError(t, err)

	for _, s := range []signer.ID{"alice", "dave"} {
		c, err := g.Client(s)
		require.NoError(t, err)
		require.NoError(t, c.Confirm(ctx, paid))
		require.NoError(t, c.Confirm(ctx, open))
	}
	require.NoError(t, alice.Execute(ctx, paid))
	require.NoError(t, alice.RemoveSigner(ctx, "dave"))

	require.NoError(t, g.Restart(ctx))

	alice, err = g.Client("alice")
	require.NoError(t, err)

	signers, required, err := alice.Roster(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []signer.ID{"alice", "bob", "carol"}, signers)
	assert.Equal(t, 2, required)

	a, err := alice.Action(ctx, paid)
	require.NoError(t, err)
	assert.True(t, a.Executed)
	assert.Equal(t, 2, a.Confirmations)

	count, confirmers, err := alice.Confirmations(ctx, open)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []signer.ID{"alice"}, confirmers)

	records, err := alice.Events(ctx, 0, 0)
	require.NoError(t, err)
	var derived int
	for _, rec := range records {
		if rec.Derived {
			derived++
			assert.Equal(t, event.Revoked, rec.Type)
		}
	}
	assert.Equal(t, 1, derived)

	// The journal only grows with new operations, not with the replay.
	before := len(records)
	_, err = alice.Submit(ctx, "vendor", 1, nil)
	require.NoError(t, err)
	records, err = alice.Events(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, before+1)
}
