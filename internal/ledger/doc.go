// Package ledger provides the append-only log of proposed actions and their
// execution status. Action identifiers are zero-based positions in the log
// and are never reused.
package ledger
