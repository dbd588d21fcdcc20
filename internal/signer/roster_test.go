package signer

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	apperrors "quorumgate/internal/errors"
)

func ids(names ...string) []ID {
	out := make([]ID, len(names))
	for i, n := range names {
		out[i] = ID(n)
	}
	return out
}

func TestNewRoster(t *testing.T) {
	tests := []struct {
		name     string
		signers  []ID
		required int
		want     error
	}{
		{"valid", ids("s1", "s2", "s3"), 2, nil},
		{"threshold equals size", ids("s1", "s2", "s3"), 3, nil},
		{"too few signers", ids("s1", "s2"), 2, apperrors.ErrTooFewSigners},
		{"threshold too low", ids("s1", "s2", "s3"), 1, apperrors.ErrInvalidConfirmations},
		{"threshold too high", ids("s1", "s2", "s3"), 4, apperrors.ErrInvalidConfirmations},
		{"null signer", ids("s1", "", "s3"), 2, apperrors.ErrInvalidIdentity},
		{"duplicate signer", ids("s1", "s2", "s1"), 2, apperrors.ErrAlreadySigner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRoster(tt.signers, tt.required)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("NewRoster() error = %v", err)
				}
				if r.Len() != len(tt.signers) || r.Required() != tt.required {
					t.Fatalf("roster len=%d required=%d", r.Len(), r.Required())
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewRoster() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRoster_AddRemove(t *testing.T) {
	r, err := NewRoster(ids("s1", "s2", "s3"), 2)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Add("s4"); err != nil {
		t.Fatalf("Add(s4) error = %v", err)
	}
	if !r.Contains("s4") || r.Len() != 4 {
		t.Fatal("expected s4 on roster")
	}
	if err := r.Add("s4"); !errors.Is(err, apperrors.ErrAlreadySigner) {
		t.Fatalf("expected AlreadySigner, got %v", err)
	}
	if err := r.Add(""); !errors.Is(err, apperrors.ErrInvalidIdentity) {
		t.Fatalf("expected InvalidIdentity, got %v", err)
	}

	if _, err := r.Remove("s9"); !errors.Is(err, apperrors.ErrNotASigner) {
		t.Fatalf("expected NotASigner, got %v", err)
	}
	if _, err := r.Remove("s1"); err != nil {
		t.Fatalf("Remove(s1) error = %v", err)
	}
	if r.Contains("s1") || r.Len() != 3 {
		t.Fatal("expected s1 removed")
	}
	if _, err := r.Remove("s2"); !errors.Is(err, apperrors.ErrTooFewSigners) {
		t.Fatalf("expected TooFewSigners, got %v", err)
	}
}

func TestRoster_RemoveQuorumInfeasible(t *testing.T) {
	r, err := NewRoster(ids("s1", "s2", "s3", "s4"), 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Remove("s1"); !errors.Is(err, apperrors.ErrQuorumInfeasible) {
		t.Fatalf("expected QuorumInfeasible, got %v", err)
	}
	if r.Len() != 4 {
		t.Fatal("roster changed after failed removal")
	}
}

func TestRoster_RestoreUndoesRemove(t *testing.T) {
	for _, victim := range ids("s1", "s2", "s3", "s4", "s5") {
		r, err := NewRoster(ids("s1", "s2", "s3", "s4", "s5"), 2)
		if err != nil {
			t.Fatal(err)
		}
		before := r.Members()

		pos, err := r.Remove(victim)
		if err != nil {
			t.Fatalf("Remove(%s) error = %v", victim, err)
		}
		r.Restore(victim, pos)

		if got := r.Members(); !reflect.DeepEqual(got, before) {
			t.Errorf("Restore(%s) order = %v, want %v", victim, got, before)
		}
		for i, id := range before {
			if r.index[id] != i {
				t.Errorf("index[%s] = %d, want %d", id, r.index[id], i)
			}
		}
	}
}

func TestRoster_DiscardUndoesAdd(t *testing.T) {
	r, err := NewRoster(ids("s1", "s2", "s3"), 3)
	if err != nil {
		t.Fatal(err)
	}
	before := r.Members()
	if err := r.Add("s4"); err != nil {
		t.Fatal(err)
	}
	r.Discard("s4")
	if got := r.Members(); !reflect.DeepEqual(got, before) {
		t.Fatalf("Members() = %v, want %v", got, before)
	}
}

func TestRoster_MembersReturnsCopy(t *testing.T) {
	r, err := NewRoster(ids("s1", "s2", "s3"), 2)
	if err != nil {
		t.Fatal(err)
	}
	m := r.Members()
	m[0] = "mallory"
	if r.Contains("mallory") {
		t.Fatal("Members should return an independent copy")
	}

	got := r.Members()
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if !reflect.DeepEqual(got, ids("s1", "s2", "s3")) {
		t.Fatalf("Members() = %v", got)
	}
}
