package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	erepo "github.com/azzil/mensalidades/be/pkg/repositories/events"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

// SQLiteRepo is the SQLite-backed access/charge log.
type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Pragmas safe for simple single-process usage
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepo{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    member_id TEXT NOT NULL,
    name TEXT,
    action TEXT,
    period TEXT,
    origin TEXT,
    pending TEXT,
    total TEXT NOT NULL DEFAULT '0',
    at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_kind_at ON events(kind, at);
CREATE INDEX IF NOT EXISTS idx_events_member ON events(member_id);
`)
	if err != nil {
		return err
	}
	// Best-effort: add columns for existing databases; ignore error if exists
	_, _ = db.Exec(`ALTER TABLE events ADD COLUMN action TEXT`)
	return nil
}

func (r *SQLiteRepo) Disconnect() { _ = r.db.Close() }

// Ensure interface compliance
var _ erepo.Repository = (*SQLiteRepo)(nil)

func (r *SQLiteRepo) Record(ctx context.Context, e erepo.Event) (erepo.Event, error) {
	if e.Kind != erepo.KindAccess && e.Kind != erepo.KindCharge {
		return erepo.Event{}, errors.New("unknown event kind " + string(e.Kind))
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()
	pending := ""
	if len(e.Pending) > 0 {
		b, err := json.Marshal(e.Pending)
		if err != nil {
			return erepo.Event{}, err
		}
		pending = string(b)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO events (id, kind, member_id, name, action, period, origin, pending, total, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), string(e.MemberID), e.Name, e.Action, e.Period, e.Origin, pending, e.Total.String(), e.At)
	if err != nil {
		return erepo.Event{}, err
	}
	return e, nil
}

func (r *SQLiteRepo) List(ctx context.Context, f erepo.Filter) ([]erepo.Event, error) {
	var where []string
	var args []any
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.MemberID != "" {
		where = append(where, "member_id = ?")
		args = append(args, string(f.MemberID))
	}
	if f.Name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Name)+"%")
	}
	q := `SELECT id, kind, member_id, name, action, period, origin, pending, total, at FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY at DESC, rowid DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []erepo.Event{}
	for rows.Next() {
		var e erepo.Event
		var kind, memberID string
		var name, action, per, origin, pending sql.NullString
		var total string
		if err := rows.Scan(&e.ID, &kind, &memberID, &name, &action, &per, &origin, &pending, &total, &e.At); err != nil {
			return nil, err
		}
		e.Kind = erepo.Kind(kind)
		e.MemberID = members.MemberID(memberID)
		e.Name, e.Action, e.Period, e.Origin = name.String, action.String, per.String, origin.String
		if pending.Valid && pending.String != "" {
			_ = json.Unmarshal([]byte(pending.String), &e.Pending)
		}
		e.Total, _ = decimal.NewFromString(total)
		out = append(out, e)
	}
	return out, rows.Err()
}
