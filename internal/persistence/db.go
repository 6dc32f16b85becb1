package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Open opens (or creates) the snapshot database and brings its schema up
// to date. WAL keeps the status API's reads from blocking the writer; the
// busy timeout covers the brief overlap anyway.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS status_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			reachable INTEGER NOT NULL,
			raw_mask INTEGER NOT NULL,
			signal_known INTEGER NOT NULL DEFAULT 0,
			signal_weak INTEGER NOT NULL,
			quality INTEGER NOT NULL,
			rssi_dbm INTEGER NOT NULL,
			link_up INTEGER NOT NULL,
			interface TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create status_snapshot table: %w", err)
	}

	// Databases created before signal_known existed: quality 0 with a
	// strong verdict used to be indistinguishable from "never sampled".
	if _, err := db.ExecContext(ctx,
		`ALTER TABLE status_snapshot ADD COLUMN signal_known INTEGER NOT NULL DEFAULT 0;`,
	); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return fmt.Errorf("add signal_known column: %w", err)
	}

	return nil
}
