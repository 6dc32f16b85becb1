package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "status.db")

	db, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestSnapshotRepoSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepo(openTestDB(t))
	now := time.Now().UTC()

	first := Snapshot{
		Reachable:   true,
		RawMask:     netstate.ConnectivityIPv4Internet | netstate.ConnectivityIPv6LocalNetwork,
		SignalKnown: true,
		SignalWeak:  false,
		Quality:     72,
		RSSIDBm:     -64,
		LinkUp:      true,
		Interface:   "wlan0",
		UpdatedAt:   now,
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored snapshot")
	}
	if got.RawMask != first.RawMask || !got.Reachable || got.Quality != 72 || got.RSSIDBm != -64 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !got.SignalKnown {
		t.Fatal("SignalKnown not round-tripped")
	}
	if !got.LinkUp || got.Interface != "wlan0" {
		t.Fatalf("unexpected link fields %+v", got)
	}
	if got.UpdatedAt.UnixMilli() != now.UnixMilli() {
		t.Fatalf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
	}
}

func TestSnapshotRepoSaveIsUpsert(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSnapshotRepo(db)
	now := time.Now().UTC()

	if err := repo.Save(ctx, Snapshot{Reachable: true, Quality: 80, UpdatedAt: now}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := repo.Save(ctx, Snapshot{Reachable: false, SignalWeak: true, Quality: 20, UpdatedAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, ok, err := repo.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Reachable || !got.SignalWeak || got.Quality != 20 {
		t.Fatalf("second save did not win: %+v", got)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM status_snapshot`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
}

// A strong verdict can legitimately carry quality 0 (the source reported
// it, the hysteresis just never crossed the drop threshold from an even
// worse start). SignalKnown must survive the store explicitly rather than
// being inferred from quality.
func TestSnapshotRepoKeepsSignalKnownAtZeroQuality(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepo(openTestDB(t))

	saved := Snapshot{
		Reachable:   true,
		SignalKnown: true,
		SignalWeak:  false,
		Quality:     0,
		RSSIDBm:     -100,
		LinkUp:      true,
		Interface:   "wlan0",
		UpdatedAt:   time.Now().UTC(),
	}
	if err := repo.Save(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := repo.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if !got.SignalKnown {
		t.Fatal("quality-0 snapshot lost SignalKnown")
	}
	if got.SignalWeak || got.Quality != 0 {
		t.Fatalf("unexpected signal fields %+v", got)
	}
}

func TestMigrateAddsSignalKnownToOldDatabase(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "status.db")

	old, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := old.ExecContext(ctx, `
		CREATE TABLE status_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			reachable INTEGER NOT NULL,
			raw_mask INTEGER NOT NULL,
			signal_weak INTEGER NOT NULL,
			quality INTEGER NOT NULL,
			rssi_dbm INTEGER NOT NULL,
			link_up INTEGER NOT NULL,
			interface TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		);
		INSERT INTO status_snapshot(id, reachable, raw_mask, signal_weak, quality, rssi_dbm, link_up, interface, updated_at)
		VALUES (1, 1, 64, 0, 72, -64, 1, 'wlan0', 1700000000000);
	`); err != nil {
		t.Fatalf("seed old schema: %v", err)
	}
	if err := old.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	db, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open migrated db: %v", err)
	}
	defer func() { _ = db.Close() }()

	got, ok, err := NewSnapshotRepo(db).Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.SignalKnown {
		t.Fatal("pre-migration row must default to SignalKnown=false")
	}
	if got.Quality != 72 || !got.Reachable {
		t.Fatalf("migration mangled existing row: %+v", got)
	}
}

func TestSnapshotRepoLoadEmpty(t *testing.T) {
	repo := NewSnapshotRepo(openTestDB(t))

	got, ok, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected no snapshot, got %+v", got)
	}
}

func TestSnapshotRepoClear(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepo(openTestDB(t))

	if err := repo.Save(ctx, Snapshot{Reachable: true, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, err := repo.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty store after clear: ok=%v err=%v", ok, err)
	}
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "status.db")

	db, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := NewSnapshotRepo(db).Save(ctx, Snapshot{Reachable: true, Quality: 64, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, ok, err := NewSnapshotRepo(reopened).Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load after reopen: ok=%v err=%v", ok, err)
	}
	if !got.Reachable || got.Quality != 64 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}
