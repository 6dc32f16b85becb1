package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

// Snapshot is the last observed monitor state. There is deliberately no
// history table behind it; one row is the whole store.
type Snapshot struct {
	Reachable   bool
	RawMask     netstate.Connectivity
	SignalKnown bool
	SignalWeak  bool
	Quality     int
	RSSIDBm     int
	LinkUp      bool
	Interface   string
	UpdatedAt   time.Time
}

type SnapshotRepo struct {
	db *sql.DB
}

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Save(ctx context.Context, s Snapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO status_snapshot(id, reachable, raw_mask, signal_known, signal_weak, quality, rssi_dbm, link_up, interface, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reachable = excluded.reachable,
			raw_mask = excluded.raw_mask,
			signal_known = excluded.signal_known,
			signal_weak = excluded.signal_weak,
			quality = excluded.quality,
			rssi_dbm = excluded.rssi_dbm,
			link_up = excluded.link_up,
			interface = excluded.interface,
			updated_at = excluded.updated_at
	`, boolToInt(s.Reachable), int64(s.RawMask), boolToInt(s.SignalKnown), boolToInt(s.SignalWeak), s.Quality, s.RSSIDBm, boolToInt(s.LinkUp), s.Interface, toUnixMillis(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save status snapshot: %w", err)
	}

	return nil
}

func (r *SnapshotRepo) Load(ctx context.Context) (Snapshot, bool, error) {
	var (
		s           Snapshot
		reachable   int64
		rawMask     int64
		signalKnown int64
		signalWeak  int64
		linkUp      int64
		updatedMs   int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT reachable, raw_mask, signal_known, signal_weak, quality, rssi_dbm, link_up, interface, updated_at
		FROM status_snapshot
		WHERE id = 1
	`).Scan(&reachable, &rawMask, &signalKnown, &signalWeak, &s.Quality, &s.RSSIDBm, &linkUp, &s.Interface, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load status snapshot: %w", err)
	}

	s.Reachable = reachable != 0
	s.RawMask = netstate.Connectivity(rawMask)
	s.SignalKnown = signalKnown != 0
	s.SignalWeak = signalWeak != 0
	s.LinkUp = linkUp != 0
	s.UpdatedAt = fromUnixMillis(updatedMs)

	return s, true, nil
}

// Clear removes the stored snapshot. Used by the debug CLI's state reset.
func (r *SnapshotRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM status_snapshot;`); err != nil {
		return fmt.Errorf("clear status snapshot: %w", err)
	}

	return nil
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}

	return 0
}
