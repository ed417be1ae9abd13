package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	srepo "github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

// SQLiteRepo caches the last snapshot written by this process so a load can
// fall back to it when the primary source is unavailable.
type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Disconnect() {
	_ = r.db.Close()
}

// Ensure interface compliance
var (
	_ srepo.Source = (*SQLiteRepo)(nil)
	_ srepo.Prober = (*SQLiteRepo)(nil)
)

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshot_cache (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			body TEXT NOT NULL,
			saved_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	return migrateCacheColumns(db)
}

// migrateCacheColumns adds counters introduced after the first release.
func migrateCacheColumns(db *sql.DB) error {
	needMembers := true
	needPayments := true
	rows, err := db.Query(`PRAGMA table_info(snapshot_cache)`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		switch name {
		case "member_count":
			needMembers = false
		case "payment_count":
			needPayments = false
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if needMembers {
		if _, err := db.Exec(`ALTER TABLE snapshot_cache ADD COLUMN member_count INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	if needPayments {
		if _, err := db.Exec(`ALTER TABLE snapshot_cache ADD COLUMN payment_count INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepo) Name() string { return "cache" }

func (r *SQLiteRepo) Probe(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepo) Load(ctx context.Context) (srepo.Snapshot, srepo.LoadReport, error) {
	row := r.db.QueryRowContext(ctx, `SELECT body FROM snapshot_cache WHERE id = 1`)
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return srepo.Snapshot{}, srepo.LoadReport{Source: r.Name()}, fmt.Errorf("%w: cache is empty", srepo.ErrNoSnapshot)
		}
		return srepo.Snapshot{}, srepo.LoadReport{Source: r.Name()}, err
	}
	snap, rep, err := srepo.Unmarshal([]byte(body))
	rep.Source = r.Name()
	return snap, rep, err
}

func (r *SQLiteRepo) Save(ctx context.Context, snap srepo.Snapshot) (srepo.SaveOutcome, error) {
	b, err := srepo.Marshal(snap)
	if err != nil {
		return srepo.SaveOutcome{}, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshot_cache (id, body, saved_at, member_count, payment_count)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			saved_at = excluded.saved_at,
			member_count = excluded.member_count,
			payment_count = excluded.payment_count
	`, string(b), time.Now().UTC(), len(snap.Members), len(snap.Payments))
	if err != nil {
		return srepo.SaveOutcome{}, err
	}
	return srepo.SaveOutcome{Accepted: true, ClosedCount: snap.ClosedCount()}, nil
}

// SavedAt returns when the cached snapshot was written. ok is false when the
// cache is empty.
func (r *SQLiteRepo) SavedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT saved_at FROM snapshot_cache WHERE id = 1`)
	var at sql.NullTime
	if err := row.Scan(&at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return at.Time, at.Valid, nil
}
