package visits

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// schemaVersion is stored in PRAGMA user_version once a store is current.
//
//	1: page column, millisecond local time text
//	2: millisecond UTC text
const schemaVersion = 2

// Migrate upgrades a store written by an older deployment to the current
// layout.
//
// Unversioned stores have a visits table without the page column and keep
// timestamps as UTC "YYYY-MM-DD HH:MM:SS" text written by SQLite's
// CURRENT_TIMESTAMP. Version 1 stores keep millisecond text in the store
// location. The upgrade:
//  1. Adds the page column when missing (existing rows get "/")
//  2. Rewrites timestamps of older layouts as millisecond UTC text
//  3. Records the schema version so the upgrade runs once
//
// Fresh stores only get their version stamped.
//
// Parameters:
//   - ctx: context for cancellation and timeout control
//   - s: the store to upgrade
//
// Returns an error if the upgrade fails; the transaction is rolled back.
func Migrate(ctx context.Context, s *Store) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	addedPage := false
	converted := 0
	switch version {
	case 0:
		var hasPage bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM pragma_table_info('visits') WHERE name = 'page')
		`).Scan(&hasPage)
		if err != nil {
			return fmt.Errorf("failed to inspect visits table: %w", err)
		}
		if !hasPage {
			s.logger.Info("Adding page column to legacy visits table")
			if _, err := tx.ExecContext(ctx, `ALTER TABLE visits ADD COLUMN page TEXT NOT NULL DEFAULT '/'`); err != nil {
				return fmt.Errorf("failed to add page column: %w", err)
			}
			addedPage = true
		}
		if converted, err = rewriteTimestamps(ctx, tx, legacyLayout, time.UTC); err != nil {
			return err
		}
	case 1:
		if converted, err = rewriteTimestamps(ctx, tx, TimestampLayout, s.loc); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to stamp schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	if addedPage || converted > 0 {
		s.logger.Info("Upgraded visit store", "from", version, "timestamps", converted, "version", schemaVersion)
	}
	return nil
}

// rewriteTimestamps rewrites every timestamp stored as layout text in from
// into TimestampLayout UTC text. Returns the number of rows rewritten.
func rewriteTimestamps(ctx context.Context, tx *sql.Tx, layout string, from *time.Location) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, CAST(timestamp AS TEXT)
		FROM visits
		WHERE length(CAST(timestamp AS TEXT)) = ?
	`, len(layout))
	if err != nil {
		return 0, fmt.Errorf("failed to query stored timestamps: %w", err)
	}

	type storedRow struct {
		id int64
		ts string
	}
	var pending []storedRow
	for rows.Next() {
		var r storedRow
		if err := rows.Scan(&r.id, &r.ts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan stored timestamp: %w", err)
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating stored timestamps: %w", err)
	}
	rows.Close()

	for _, r := range pending {
		t, err := time.ParseInLocation(layout, r.ts, from)
		if err != nil {
			return 0, fmt.Errorf("failed to parse stored timestamp %q: %w", r.ts, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE visits SET timestamp = ? WHERE id = ?`, formatTimestamp(t), r.id); err != nil {
			return 0, fmt.Errorf("failed to rewrite timestamp: %w", err)
		}
	}
	return len(pending), nil
}
