package engine

import (
	"fmt"
	"strings"
)

// RemovedSignerPolicy decides what happens to the confirmations of a signer
// that is removed from the roster.
type RemovedSignerPolicy int

const (
	// KeepConfirmations leaves the removed signer's confirmations in place;
	// they keep counting toward quorum.
	KeepConfirmations RemovedSignerPolicy = iota
	// DiscardConfirmations revokes the removed signer's confirmations on
	// every pending action as part of the removal.
	DiscardConfirmations
)

// String returns the config spelling of the policy.
func (p RemovedSignerPolicy) String() string {
	switch p {
	case KeepConfirmations:
		return "keep"
	case DiscardConfirmations:
		return "discard"
	default:
		return fmt.Sprintf("RemovedSignerPolicy(%d)", int(p))
	}
}

// ParseRemovedSignerPolicy parses "keep" or "discard".
func ParseRemovedSignerPolicy(s string) (RemovedSignerPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return KeepConfirmations, nil
	case "discard":
		return DiscardConfirmations, nil
	default:
		return KeepConfirmations, fmt.Errorf("unknown removed signer policy %q (expected keep or discard)", s)
	}
}
