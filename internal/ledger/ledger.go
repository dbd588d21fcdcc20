package ledger

import (
	"fmt"
	"strconv"

	apperrors "quorumgate/internal/errors"
)

// Action is an immutable view of a proposed action.
type Action struct {
	ID            uint64
	Target        string
	Value         uint64
	Payload       []byte
	Executed      bool
	Confirmations int // filled in by the engine from the confirmation tracker
}

// Pending reports whether the action still awaits execution.
func (a Action) Pending() bool {
	return !a.Executed
}

type entry struct {
	target   string
	value    uint64
	payload  []byte
	executed bool
}

// Ledger is the append-only action log.
// Thread-safe operations should be handled by the caller.
type Ledger struct {
	entries []entry
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Append records a new pending action and returns its identifier, which is
// the ledger length before insertion.
func (l *Ledger) Append(target string, value uint64, payload []byte) (uint64, error) {
	if target == "" {
		return 0, apperrors.ErrInvalidTarget
	}
	id := uint64(len(l.entries))
	l.entries = append(l.entries, entry{
		target:  target,
		value:   value,
		payload: append([]byte(nil), payload...),
	})
	return id, nil
}

// Len returns the number of actions ever submitted.
func (l *Ledger) Len() uint64 {
	return uint64(len(l.entries))
}

// Exists reports whether id names a submitted action.
func (l *Ledger) Exists(id uint64) bool {
	return id < uint64(len(l.entries))
}

// Executed reports whether the action has executed. Unknown ids report false.
func (l *Ledger) Executed(id uint64) bool {
	return l.Exists(id) && l.entries[id].executed
}

// Get returns a copy of the action.
func (l *Ledger) Get(id uint64) (Action, error) {
	if !l.Exists(id) {
		return Action{}, UnknownAction(id)
	}
	return l.view(id), nil
}

// List returns up to limit actions starting at offset, in submission order.
// A non-positive limit returns every action from offset on.
func (l *Ledger) List(offset uint64, limit int) []Action {
	n := uint64(len(l.entries))
	if offset >= n {
		return []Action{}
	}
	end := n
	if limit > 0 && offset+uint64(limit) < n {
		end = offset + uint64(limit)
	}
	out := make([]Action, 0, end-offset)
	for id := offset; id < end; id++ {
		out = append(out, l.view(id))
	}
	return out
}

// MarkExecuted transitions a pending action to executed.
func (l *Ledger) MarkExecuted(id uint64) error {
	if !l.Exists(id) {
		return UnknownAction(id)
	}
	if l.entries[id].executed {
		return AlreadyExecuted(id)
	}
	l.entries[id].executed = true
	return nil
}

// Reopen clears the executed flag, undoing MarkExecuted.
// It exists for transaction rollback only.
func (l *Ledger) Reopen(id uint64) {
	if l.Exists(id) {
		l.entries[id].executed = false
	}
}

// Truncate drops every action at or after n, undoing Append.
// It exists for transaction rollback only.
func (l *Ledger) Truncate(n uint64) {
	if n < uint64(len(l.entries)) {
		clear(l.entries[n:])
		l.entries = l.entries[:n]
	}
}

func (l *Ledger) view(id uint64) Action {
	e := l.entries[id]
	return Action{
		ID:       id,
		Target:   e.target,
		Value:    e.value,
		Payload:  append([]byte(nil), e.payload...),
		Executed: e.executed,
	}
}

// UnknownAction builds the error for an out-of-range action id.
func UnknownAction(id uint64) error {
	return apperrors.WithMetadata(apperrors.CodeUnknownAction,
		fmt.Sprintf("action %d does not exist", id),
		map[string]string{"action_id": strconv.FormatUint(id, 10)})
}

// AlreadyExecuted builds the error for an action that has already executed.
func AlreadyExecuted(id uint64) error {
	return apperrors.WithMetadata(apperrors.CodeAlreadyExecuted,
		fmt.Sprintf("action %d already executed", id),
		map[string]string{"action_id": strconv.FormatUint(id, 10)})
}
