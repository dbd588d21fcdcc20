package storage

import (
	"context"
	"testing"

	"quorumgate/internal/event"
)

func TestMemoryJournal_AppendList(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec, err := j.Append(ctx, event.Event{Type: event.ActionSubmitted, Caller: "s1", ActionID: uint64(i), Target: "acct"})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if rec.Seq != uint64(i)+1 {
			t.Errorf("Seq = %d, want %d", rec.Seq, i+1)
		}
		if rec.ID == "" || rec.RecordedAt.IsZero() {
			t.Errorf("record missing id or timestamp: %+v", rec)
		}
	}

	all, err := j.List(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(all))
	}

	page, err := j.List(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Seq != 2 {
		t.Fatalf("List(1,1) = %+v", page)
	}

	empty, err := j.List(ctx, 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no records after last seq, got %d", len(empty))
	}
}

func TestMemoryJournal_RejectsUnknownType(t *testing.T) {
	j := NewMemoryJournal()
	if _, err := j.Append(context.Background(), event.Event{Type: "bogus"}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestMemoryJournal_ReturnsCopies(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()
	payload := []byte("memo")
	if _, err := j.Append(ctx, event.Event{Type: event.ActionSubmitted, Target: "acct", Payload: payload}); err != nil {
		t.Fatal(err)
	}
	payload[0] = 'X'

	recs, _ := j.List(ctx, 0, 0)
	recs[0].Payload[1] = 'Y'

	again, _ := j.List(ctx, 0, 0)
	if string(again[0].Payload) != "memo" {
		t.Fatalf("stored payload mutated: %q", again[0].Payload)
	}
}

func TestReadAll_Pages(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		if _, err := j.Append(ctx, event.Event{Type: event.Confirmed, ActionID: uint64(i), Signer: "s1"}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := ReadAll(ctx, j, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 7 {
		t.Fatalf("ReadAll() returned %d records, want 7", len(all))
	}
	for i, rec := range all {
		if rec.Seq != uint64(i)+1 {
			t.Fatalf("record %d has seq %d", i, rec.Seq)
		}
	}
}

func TestMemoryJournal_CancelledContext(t *testing.T) {
	j := NewMemoryJournal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := j.Append(ctx, event.Event{Type: event.Executed}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestMemoryJournal_AppendBatchIsAtomic(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	_, err := j.AppendBatch(ctx, []event.Event{
		{Type: event.SignerAdded, Caller: "s1", Signer: "s4"},
		{Type: "bogus"},
	})
	if err == nil {
		t.Fatal("expected error for batch with unknown type")
	}
	if got, _ := j.List(ctx, 0, 0); len(got) != 0 {
		t.Fatalf("failed batch stored %d records", len(got))
	}

	recs, err := j.AppendBatch(ctx, []event.Event{
		{Type: event.SignerAdded, Caller: "s1", Signer: "s4"},
		{Type: event.SignerRemoved, Caller: "s1", Signer: "s2"},
	})
	if err != nil {
		t.Fatalf("AppendBatch() error = %v", err)
	}
	if len(recs) != 2 || recs[1].Seq != 2 || recs[1].Type != event.SignerRemoved {
		t.Fatalf("AppendBatch() = %+v", recs)
	}
}
