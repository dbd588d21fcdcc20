package signer

import (
	"fmt"

	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/quorum"
)

// ID identifies a principal. The zero value is the null identity.
type ID string

// IsZero reports whether id is the null identity.
func (id ID) IsZero() bool {
	return id == ""
}

// String returns the identity as a string.
func (id ID) String() string {
	return string(id)
}

// Roster is an ordered set of signers plus the confirmation threshold fixed
// at construction. Membership lookups and removals are O(1); removal swaps
// the last member into the vacated slot, so enumeration order is not stable.
type Roster struct {
	members  []ID
	index    map[ID]int // member -> position in members
	required int
}

// NewRoster builds a roster, rejecting undersized rosters, thresholds outside
// [MinRequired, len(ids)], and null or duplicate identities.
func NewRoster(ids []ID, required int) (*Roster, error) {
	if err := quorum.Validate(len(ids), required); err != nil {
		return nil, err
	}

	r := &Roster{
		members:  make([]ID, 0, len(ids)),
		index:    make(map[ID]int, len(ids)),
		required: required,
	}
	for _, id := range ids {
		if err := r.Add(id); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Contains reports whether id is on the roster.
func (r *Roster) Contains(id ID) bool {
	_, ok := r.index[id]
	return ok
}

// Len returns the number of signers.
func (r *Roster) Len() int {
	return len(r.members)
}

// Required returns the confirmation threshold.
func (r *Roster) Required() int {
	return r.required
}

// Members returns a copy of the signers in enumeration order.
func (r *Roster) Members() []ID {
	return append([]ID(nil), r.members...)
}

// Add appends id to the roster.
func (r *Roster) Add(id ID) error {
	if id.IsZero() {
		return apperrors.ErrInvalidIdentity
	}
	if r.Contains(id) {
		return apperrors.WithMetadata(apperrors.CodeAlreadySigner,
			fmt.Sprintf("%s is already a signer", id),
			map[string]string{"signer": id.String()})
	}
	r.index[id] = len(r.members)
	r.members = append(r.members, id)
	return nil
}

// Remove deletes id from the roster and returns the position it occupied.
// Removal is refused when it would shrink the roster below MinSigners or
// below the threshold.
func (r *Roster) Remove(id ID) (int, error) {
	pos, ok := r.index[id]
	if !ok {
		return -1, apperrors.WithMetadata(apperrors.CodeNotASigner,
			fmt.Sprintf("%s is not a signer", id),
			map[string]string{"signer": id.String()})
	}
	if err := quorum.CheckRemoval(len(r.members), r.required); err != nil {
		return -1, err
	}

	r.drop(pos)
	return pos, nil
}

// Restore reinserts id at pos, exactly undoing a Remove that returned pos.
// It bypasses roster invariants and exists for transaction rollback only.
func (r *Roster) Restore(id ID, pos int) {
	r.members = append(r.members, id)
	last := len(r.members) - 1
	r.index[id] = last
	if pos < 0 || pos >= last {
		return
	}
	displaced := r.members[pos]
	r.members[pos], r.members[last] = id, displaced
	r.index[id] = pos
	r.index[displaced] = last
}

// Discard drops id without checking invariants, exactly undoing an Add.
// It exists for transaction rollback only.
func (r *Roster) Discard(id ID) {
	if pos, ok := r.index[id]; ok {
		r.drop(pos)
	}
}

// drop swap-removes the member at pos.
func (r *Roster) drop(pos int) {
	id := r.members[pos]
	last := len(r.members) - 1
	moved := r.members[last]
	r.members[pos] = moved
	r.index[moved] = pos
	r.members = r.members[:last]
	delete(r.index, id)
}
