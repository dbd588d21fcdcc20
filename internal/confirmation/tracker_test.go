package confirmation

import (
	"errors"
	"math/rand"
	"sort"
	"testing"
	"time"

	apperrors "quorumgate/internal/errors"
	"quorumgate/internal/signer"
)

func TestTracker_ConfirmRevoke(t *testing.T) {
	tr := NewTracker()

	if err := tr.Confirm(0, "s1"); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if err := tr.Confirm(0, "s2"); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if got := tr.Count(0); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}
	if err := tr.Confirm(0, "s1"); !errors.Is(err, apperrors.ErrAlreadyConfirmed) {
		t.Fatalf("expected AlreadyConfirmed, got %v", err)
	}

	if err := tr.Revoke(0, "s1"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if tr.Confirmed(0, "s1") || tr.Count(0) != 1 {
		t.Fatal("expected s1 revoked")
	}
	if err := tr.Revoke(0, "s1"); !errors.Is(err, apperrors.ErrNotConfirmed) {
		t.Fatalf("expected NotConfirmed, got %v", err)
	}
	if err := tr.Revoke(1, "s3"); !errors.Is(err, apperrors.ErrNotConfirmed) {
		t.Fatalf("expected NotConfirmed on untouched action, got %v", err)
	}
}

func TestTracker_ActionsAreIndependent(t *testing.T) {
	tr := NewTracker()
	_ = tr.Confirm(0, "s1")
	_ = tr.Confirm(1, "s2")

	if tr.Confirmed(1, "s1") || tr.Confirmed(0, "s2") {
		t.Fatal("records leaked across actions")
	}

	got := tr.ConfirmedBy("s1", []uint64{0, 1, 2})
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("ConfirmedBy() = %v, want [0]", got)
	}
}

func TestTracker_Signers(t *testing.T) {
	tr := NewTracker()
	_ = tr.Confirm(3, "s2")
	_ = tr.Confirm(3, "s1")

	got := tr.Signers(3)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
		t.Fatalf("Signers() = %v", got)
	}
	if len(tr.Signers(4)) != 0 {
		t.Fatal("expected no signers for untouched action")
	}
}

// TestTracker_Property_CountMatchesRecords tests that Count always equals the
// number of true records after random confirm/revoke sequences.
func TestTracker_Property_CountMatchesRecords(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Logf("Using seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))

	signers := []signer.ID{"s1", "s2", "s3", "s4", "s5"}
	tr := NewTracker()
	model := make(map[uint64]map[signer.ID]bool)

	for i := 0; i < 2000; i++ {
		id := uint64(rng.Intn(4))
		s := signers[rng.Intn(len(signers))]
		if model[id] == nil {
			model[id] = make(map[signer.ID]bool)
		}

		if rng.Intn(2) == 0 {
			err := tr.Confirm(id, s)
			if model[id][s] != (err != nil) {
				t.Fatalf("Confirm(%d,%s) err=%v with model=%v", id, s, err, model[id][s])
			}
			model[id][s] = true
		} else {
			err := tr.Revoke(id, s)
			if model[id][s] == (err != nil) {
				t.Fatalf("Revoke(%d,%s) err=%v with model=%v", id, s, err, model[id][s])
			}
			model[id][s] = false
		}

		for aid, recs := range model {
			want := 0
			for _, v := range recs {
				if v {
					want++
				}
			}
			if got := tr.Count(aid); got != want {
				t.Fatalf("Count(%d) = %d, want %d", aid, got, want)
			}
		}
	}
}
