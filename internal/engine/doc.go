// Package engine implements the quorum-gated authorization engine: it owns
// the signer roster, the action ledger, and the confirmation tracker of one
// protected resource and serializes every operation on them.
//
// Every mutating operation holds the engine's write lock for its whole
// duration and runs inside a transaction that records an undo step for each
// change. If the operation fails, the undo steps run in reverse and the
// state is exactly what it was before the call. When a journal is configured,
// the operation's events are appended to it as one batch before the lock is
// released; a failed append rolls the operation back. If the effect has
// already run the append failure cannot be undone, so the engine halts and
// refuses every later mutation. Notifications are published only after the
// journal append succeeds.
//
// Execute marks the action executed before it invokes the effect handler.
// The context handed to the handler carries the running transaction, so a
// handler that calls back into the engine with that context joins the
// transaction instead of deadlocking on the lock. Such a call sees the
// action as already executed, and anything it changes is rolled back with
// the outer Execute if the handler fails. Joined calls are serialized on a
// per-transaction mutex, so a handler may hand its context to other
// goroutines. Executing another action from a handler is refused.
package engine
