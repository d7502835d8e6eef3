/*
Package sqlite provides a SQLite-backed implementation of leave.Store.

PURPOSE:
  Alternate backend for deployments that prefer a database file over a
  JSON document. Same contract as store/jsonfile: load everything,
  replace everything.

KEY TABLE:
  leave_requests: one row per employee-day record. The position column
  keeps store order stable across load/save cycles, which matters
  because the first record of a group is its representative.

FULL REPLACE:
  SaveAll deletes every row and re-inserts the collection inside one SQL
  transaction. Readers see the old or the new collection, never a mix.

INDEXES:
  - idx_leave_requests_token:         approval link lookups
  - idx_leave_requests_employee_date: duplicate checks and reports

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The service serializes writers
  already; the lock also covers out-of-band writers like leavectl.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewService(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - leave/store.go: Interface definition
  - store/jsonfile: Default backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-tracker/leave"
)

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		group_id TEXT,
		token TEXT,
		employee_id TEXT NOT NULL,
		email TEXT,
		display_name TEXT,
		name TEXT,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		note TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		approved_at TEXT,
		approved_by TEXT,
		rejected_at TEXT,
		rejected_by TEXT,
		rejection_reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_token
		ON leave_requests(token) WHERE token IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee_date
		ON leave_requests(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_position
		ON leave_requests(position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (leave.Store interface)
// =============================================================================

// LoadAll returns every record in position order.
func (s *Store) LoadAll(ctx context.Context) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, group_id, token, employee_id, email, display_name, name, date, type,
			note, status, created_at, approved_at, approved_by, rejected_at, rejected_by,
			rejection_reason
		FROM leave_requests ORDER BY position
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &leave.StoreError{Op: "load", Err: err}
	}
	defer rows.Close()

	records := []leave.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, &leave.StoreError{Op: "load", Err: err}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &leave.StoreError{Op: "load", Err: err}
	}

	return leave.Dedupe(records), nil
}

// SaveAll replaces the collection inside one transaction.
func (s *Store) SaveAll(ctx context.Context, records []leave.Request) error {
	records = leave.Dedupe(records)

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &leave.StoreError{Op: "save", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM leave_requests`); err != nil {
		return &leave.StoreError{Op: "save", Err: err}
	}

	stmt, err := sqlTx.PrepareContext(ctx, `
		INSERT INTO leave_requests
		(id, position, group_id, token, employee_id, email, display_name, name, date, type,
		 note, status, created_at, approved_at, approved_by, rejected_at, rejected_by,
		 rejection_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &leave.StoreError{Op: "save", Err: err}
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID,
			i,
			nullString(r.GroupID),
			nullString(r.Token),
			r.EmployeeID,
			nullString(r.Email),
			nullString(r.DisplayName),
			nullString(r.Name),
			r.Date,
			string(r.Type),
			nullString(r.Note),
			string(r.Status),
			r.CreatedAt.Format(time.RFC3339Nano),
			nullTime(r.ApprovedAt),
			nullString(r.ApprovedBy),
			nullTime(r.RejectedAt),
			nullString(r.RejectedBy),
			nullString(r.RejectionReason),
		)
		if err != nil {
			return &leave.StoreError{Op: "save", Err: fmt.Errorf("failed to insert %s: %w", r.ID, err)}
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return &leave.StoreError{Op: "save", Err: err}
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leave_requests`).Scan(&n)
	return n, err
}

func scanRequest(rows *sql.Rows) (leave.Request, error) {
	var r leave.Request
	var groupID, token, email, displayName, name, note sql.NullString
	var approvedAt, approvedBy, rejectedAt, rejectedBy, reason sql.NullString
	var typ, status, createdAt string

	err := rows.Scan(
		&r.ID, &groupID, &token, &r.EmployeeID, &email, &displayName, &name, &r.Date,
		&typ, &note, &status, &createdAt, &approvedAt, &approvedBy, &rejectedAt,
		&rejectedBy, &reason,
	)
	if err != nil {
		return r, err
	}

	r.GroupID = groupID.String
	r.Token = token.String
	r.Email = email.String
	r.DisplayName = displayName.String
	r.Name = name.String
	r.Type = leave.Type(typ)
	r.Note = note.String
	r.Status = leave.Status(status)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.ApprovedAt = parseNullTime(approvedAt)
	r.ApprovedBy = approvedBy.String
	r.RejectedAt = parseNullTime(rejectedAt)
	r.RejectedBy = rejectedBy.String
	r.RejectionReason = reason.String

	return r, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
