package effect

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTargetRejected is returned when the target refuses transfers.
	ErrTargetRejected = errors.New("target rejected transfer")
)

// Treasury is a value-transfer effect: executing an action moves Value from
// the treasury balance to the Target account. A failed transfer changes
// nothing.
type Treasury struct {
	mu       sync.Mutex
	balance  uint64
	accounts map[string]uint64
	rejected map[string]bool
}

// NewTreasury creates a treasury holding balance.
func NewTreasury(balance uint64) *Treasury {
	return &Treasury{
		balance:  balance,
		accounts: make(map[string]uint64),
		rejected: make(map[string]bool),
	}
}

// Reject makes every later transfer to target fail.
func (t *Treasury) Reject(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejected[target] = true
}

// Balance returns the funds left in the treasury.
func (t *Treasury) Balance() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance
}

// AccountBalance returns what target has received so far.
func (t *Treasury) AccountBalance(target string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accounts[target]
}

// Invoke transfers call.Value to call.Target.
func (t *Treasury) Invoke(ctx context.Context, call Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rejected[call.Target] {
		return fmt.Errorf("%w: %s", ErrTargetRejected, call.Target)
	}
	if call.Value > t.balance {
		return fmt.Errorf("%w: balance=%d value=%d", ErrInsufficientFunds, t.balance, call.Value)
	}
	t.balance -= call.Value
	t.accounts[call.Target] += call.Value
	return nil
}
