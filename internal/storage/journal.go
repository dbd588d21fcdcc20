package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"quorumgate/internal/event"
)

// Journal defines the interface for event persistence.
type Journal interface {
	// Append stores ev and returns the stored record.
	Append(ctx context.Context, ev event.Event) (event.Record, error)
	// AppendBatch stores evs in order as one unit: either every event is
	// recorded or none is.
	AppendBatch(ctx context.Context, evs []event.Event) ([]event.Record, error)
	// List returns up to limit records with Seq > afterSeq in sequence order.
	// A non-positive limit returns every remaining record.
	List(ctx context.Context, afterSeq uint64, limit int) ([]event.Record, error)
	// Close releases resources held by the journal.
	Close() error
}

// MemoryJournal is an in-memory implementation of Journal.
// It's thread-safe and returns copies so callers cannot mutate stored events.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []event.Record
	now     func() time.Time
}

// NewMemoryJournal creates a new in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Append stores an event.
func (j *MemoryJournal) Append(ctx context.Context, ev event.Event) (event.Record, error) {
	recs, err := j.AppendBatch(ctx, []event.Event{ev})
	if err != nil {
		return event.Record{}, err
	}
	return recs[0], nil
}

// AppendBatch stores evs atomically.
func (j *MemoryJournal) AppendBatch(ctx context.Context, evs []event.Event) ([]event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ev := range evs {
		if !ev.Type.Valid() {
			return nil, fmt.Errorf("unknown event type %q", ev.Type)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]event.Record, 0, len(evs))
	for _, ev := range evs {
		rec := event.Record{
			Seq:        uint64(len(j.records)) + 1,
			ID:         uuid.NewString(),
			RecordedAt: j.now(),
			Event:      copyEvent(ev),
		}
		j.records = append(j.records, rec)
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

// List returns records after afterSeq.
func (j *MemoryJournal) List(ctx context.Context, afterSeq uint64, limit int) ([]event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	n := uint64(len(j.records))
	if afterSeq >= n {
		return []event.Record{}, nil
	}
	end := n
	if limit > 0 && afterSeq+uint64(limit) < n {
		end = afterSeq + uint64(limit)
	}

	out := make([]event.Record, 0, end-afterSeq)
	for _, rec := range j.records[afterSeq:end] {
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

// Close is a no-op for the in-memory journal.
func (j *MemoryJournal) Close() error {
	return nil
}

// ReadAll drains a journal from the beginning in pages of pageSize.
func ReadAll(ctx context.Context, j Journal, pageSize int) ([]event.Record, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	var (
		all   []event.Record
		after uint64
	)
	for {
		page, err := j.List(ctx, after, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list journal after %d: %w", after, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		after = page[len(page)-1].Seq
	}
}

func copyEvent(ev event.Event) event.Event {
	if ev.Payload != nil {
		ev.Payload = append([]byte(nil), ev.Payload...)
	}
	return ev
}

func copyRecord(rec event.Record) event.Record {
	rec.Event = copyEvent(rec.Event)
	return rec
}
