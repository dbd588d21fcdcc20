// Package sqlite provides a SQLite-backed event journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
	"quorumgate/internal/event"
	"quorumgate/internal/signer"
	"quorumgate/internal/storage/sqlite/migrations"
)

// Store is a SQLite implementation of storage.Journal.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a journal database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Appends must get strictly increasing sequence numbers in commit order.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{
		sqlDB: sqlDB,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append persists one event.
func (s *Store) Append(ctx context.Context, ev event.Event) (event.Record, error) {
	recs, err := s.AppendBatch(ctx, []event.Event{ev})
	if err != nil {
		return event.Record{}, err
	}
	return recs[0], nil
}

// AppendBatch persists evs in a single SQLite transaction.
func (s *Store) AppendBatch(ctx context.Context, evs []event.Event) ([]event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	for _, ev := range evs {
		if !ev.Type.Valid() {
			return nil, fmt.Errorf("unknown event type %q", ev.Type)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]event.Record, 0, len(evs))
	for _, ev := range evs {
		rec, err := s.insert(ctx, tx, ev)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return out, nil
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, ev event.Event) (event.Record, error) {
	rec := event.Record{
		ID:         uuid.NewString(),
		RecordedAt: s.now(),
		Event:      ev,
	}
	if ev.Payload != nil {
		rec.Payload = append([]byte(nil), ev.Payload...)
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO journal_events (
	id,
	event_type,
	caller,
	action_id,
	signer,
	target,
	value,
	payload,
	derived,
	recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		rec.ID,
		string(ev.Type),
		ev.Caller.String(),
		int64(ev.ActionID),
		ev.Signer.String(),
		ev.Target,
		strconv.FormatUint(ev.Value, 10),
		ev.Payload,
		boolToInt(ev.Derived),
		rec.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return event.Record{}, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return event.Record{}, fmt.Errorf("read event seq: %w", err)
	}
	rec.Seq = uint64(seq)
	return rec, nil
}

// List returns records with seq greater than afterSeq.
func (s *Store) List(ctx context.Context, afterSeq uint64, limit int) ([]event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	seq,
	id,
	event_type,
	caller,
	action_id,
	signer,
	target,
	value,
	payload,
	derived,
	recorded_at
FROM journal_events
WHERE seq > ?
ORDER BY seq ASC
LIMIT ?
`, int64(afterSeq), limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	records := []event.Record{}
	for rows.Next() {
		var (
			rec        event.Record
			seq        int64
			eventType  string
			caller     string
			actionID   int64
			signerID   string
			value      string
			derived    int
			recordedAt int64
		)
		if err := rows.Scan(
			&seq,
			&rec.ID,
			&eventType,
			&caller,
			&actionID,
			&signerID,
			&rec.Target,
			&value,
			&rec.Payload,
			&derived,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Seq = uint64(seq)
		rec.Type = event.Type(eventType)
		rec.Caller = signer.ID(caller)
		rec.ActionID = uint64(actionID)
		rec.Signer = signer.ID(signerID)
		rec.Derived = derived != 0
		rec.RecordedAt = time.UnixMilli(recordedAt).UTC()
		rec.Value, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse value of event %d: %w", seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
