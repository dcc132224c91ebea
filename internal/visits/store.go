package visits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Timestamps are stored as fixed-width UTC text so that string comparison
// in SQL matches chronological order, including across DST changes. The
// store location only decides calendar-day boundaries.
const (
	TimestampLayout = "2006-01-02 15:04:05.000"
	dateLayout      = "2006-01-02"
	legacyLayout    = "2006-01-02 15:04:05"
	maxPageLength   = 2048
)

// Store handles SQLite persistence for visits and the total counter.
type Store struct {
	db     *sql.DB
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for default timestamps and windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the location used for calendar-day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Schema for the database tables
const schema = `
-- One row per tracked page view
CREATE TABLE IF NOT EXISTS visits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    visitor_id TEXT NOT NULL CHECK(length(visitor_id) > 0),
    timestamp TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    page TEXT NOT NULL DEFAULT '/' CHECK(length(page) <= 2048)
);
CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
CREATE INDEX IF NOT EXISTS idx_visits_visitor_id ON visits(visitor_id);

-- Write-time maintained cache of the all-time visit count
CREATE TABLE IF NOT EXISTS total_counts (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    total_visits INTEGER NOT NULL DEFAULT 0 CHECK(total_visits >= 0),
    last_updated TEXT
);
`

// Open opens (creating if needed) the SQLite store at dbPath, applies the
// schema, upgrades legacy stores and makes sure the counter row exists.
//
// Parameters:
//   - dbPath: path to the SQLite database file
//   - logger: structured logger instance
//   - opts: optional clock and location overrides
//
// Returns a ready Store or an error if initialization fails.
func Open(dbPath string, logger *slog.Logger, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer. Every operation borrows the
	// connection for one transaction and returns it afterwards.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{
		db:     db,
		loc:    time.Local,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()
	if err := Migrate(ctx, s); err != nil {
		db.Close()
		return nil, err
	}

	// Seed the counter from existing rows; a fresh store starts at 0.
	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO total_counts (id, total_visits, last_updated)
		SELECT 1, COUNT(*), ? FROM visits
	`, formatTimestamp(s.Now()))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize total counter: %w", err)
	}

	logger.Debug("Database initialized", "path", dbPath)
	return s, nil
}

// Now returns the store clock's current time in the store location.
func (s *Store) Now() time.Time {
	return s.now().In(s.loc)
}

// Location returns the location used for calendar-day boundaries.
func (s *Store) Location() *time.Location {
	return s.loc
}

// RecordVisit inserts a visit and increments the total counter in a single
// transaction.
//
// The counter increment is one atomic upsert statement, so concurrent
// writers never lose an increment.
//
// Parameters:
//   - ctx: context for cancellation and timeout control
//   - v: the visit to insert
//
// Returns the inserted row details or a *StorageError.
func (s *Store) RecordVisit(ctx context.Context, v NewVisit) (Insertion, error) {
	ts := v.Timestamp
	if ts.IsZero() {
		ts = s.Now()
	}
	ts = ts.In(s.loc)
	ins := Insertion{Timestamp: ts}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ins, storageErr("record visit", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if v.CheckToday {
		start := startOfDay(ts)
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM visits
				WHERE visitor_id = ? AND timestamp >= ? AND timestamp < ?
			)
		`, v.VisitorID, formatTimestamp(start), formatTimestamp(start.AddDate(0, 0, 1))).Scan(&ins.SeenToday)
		if err != nil {
			return ins, storageErr("record visit", fmt.Errorf("failed to check today's visits: %w", err))
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO visits (visitor_id, timestamp, page)
		VALUES (?, ?, ?)
	`, v.VisitorID, formatTimestamp(ts), NormalizePage(v.Page))
	if err != nil {
		return ins, storageErr("record visit", fmt.Errorf("failed to insert visit: %w", err))
	}
	if ins.ID, err = res.LastInsertId(); err != nil {
		return ins, storageErr("record visit", fmt.Errorf("failed to read visit id: %w", err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO total_counts (id, total_visits, last_updated)
		VALUES (1, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_visits = total_visits + 1,
			last_updated = excluded.last_updated
	`, formatTimestamp(s.Now()))
	if err != nil {
		return ins, storageErr("record visit", fmt.Errorf("failed to update total counter: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return ins, storageErr("record visit", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return ins, nil
}

// View runs fn inside a transaction so that several reads observe the same
// snapshot. The transaction is always rolled back; fn must not write.
func (s *Store) View(ctx context.Context, op string, fn func(r *Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	return storageErr(op, fn(&Reader{q: tx, loc: s.loc}))
}

// Ping reports whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return storageErr("ping", s.db.PingContext(ctx))
}

// Close closes the database connection.
//
// Returns an error if the close operation fails.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reader exposes read-only queries bound to one transaction.
type Reader struct {
	q   querier
	loc *time.Location
}

// TotalCounter returns the cached all-time visit count. ok is false when the
// counter row does not exist.
func (r *Reader) TotalCounter(ctx context.Context) (total int64, ok bool, err error) {
	err = r.q.QueryRowContext(ctx, `SELECT total_visits FROM total_counts WHERE id = 1`).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query total counter: %w", err)
	}
	return total, true, nil
}

// Count returns visits and distinct visitors with from <= timestamp < to.
// A zero bound is open.
func (r *Reader) Count(ctx context.Context, from, to time.Time) (Counts, error) {
	var c Counts
	query, args := withRange(`SELECT COUNT(*), COUNT(DISTINCT visitor_id) FROM visits`, from, to)
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&c.Visits, &c.Unique); err != nil {
		return Counts{}, fmt.Errorf("failed to count visits: %w", err)
	}
	return c, nil
}

// List returns visits with timestamp >= since, newest first. A zero since
// lists everything; limit <= 0 means no limit.
func (r *Reader) List(ctx context.Context, since time.Time, limit int) ([]Visit, error) {
	// CAST keeps the driver from reinterpreting legacy DATETIME columns.
	query, args := withRange(`SELECT id, visitor_id, CAST(timestamp AS TEXT), page FROM visits`, since, time.Time{})
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	visits := make([]Visit, 0)
	for rows.Next() {
		var v Visit
		var ts string
		if err := rows.Scan(&v.ID, &v.VisitorID, &ts, &v.Page); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		if v.Timestamp, err = parseTimestamp(ts, r.loc); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}
	return visits, nil
}

func withRange(base string, from, to time.Time) (string, []any) {
	var conds []string
	var args []any
	if !from.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, formatTimestamp(from))
	}
	if !to.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, formatTimestamp(to))
	}
	if len(conds) == 0 {
		return base, args
	}
	return base + " WHERE " + strings.Join(conds, " AND "), args
}

// NormalizePage turns a request path into the stored page value.
func NormalizePage(page string) string {
	p := strings.TrimSpace(page)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return clip(p, maxPageLength)
}

// clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// parseTimestamp reads stored UTC text and returns it in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{TimestampLayout, legacyLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.In(loc), nil
		}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.In(loc), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
