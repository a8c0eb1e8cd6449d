package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a conditional write whose row had already moved on.
	ErrConflict = errors.New("conflict")
)

// queryer is satisfied by *sql.DB and *sql.Tx. The pool holds one connection,
// so reads inside a transaction must go through the transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func affectedOrNotFound(res sql.Result) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type EventFilters struct {
	Type       string
	EntityKind string
	EntityID   string
	// Cursor returns events older than this id.
	Cursor int64
	Limit  int
}

// ListEvents returns events newest first.
func (r Repo) ListEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	var w filter
	w.eq("type", f.Type)
	w.eq("entity_kind", f.EntityKind)
	w.eq("entity_id", f.EntityID)
	if f.Cursor > 0 {
		w.add("id<?", f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events` + w.where() + ` ORDER BY id DESC` + w.limit(limit)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	return collect(rows, err, func(row rowScanner) (domain.Event, error) {
		var e domain.Event
		err := row.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload)
		return e, err
	})
}

// filter accumulates AND-ed WHERE clauses and their arguments.
type filter struct {
	clauses []string
	args    []any
}

func (f *filter) add(clause string, args ...any) {
	f.clauses = append(f.clauses, clause)
	f.args = append(f.args, args...)
}

// eq matches col exactly; an empty value means no constraint.
func (f *filter) eq(col, v string) {
	if v != "" {
		f.add(col+"=?", v)
	}
}

func (f *filter) in(col string, vals []string) {
	if len(vals) == 0 {
		return
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(vals)), ",")
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	f.add(col+" IN ("+marks+")", args...)
}

// olderThan is the keyset condition for lists ordered by
// (created_at DESC, id DESC).
func (f *filter) olderThan(createdAt, id string) {
	if createdAt != "" && id != "" {
		f.add("(created_at < ? OR (created_at = ? AND id < ?))", createdAt, createdAt, id)
	}
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// limit appends the LIMIT argument and returns its clause; n <= 0 is unbounded.
func (f *filter) limit(n int) string {
	if n <= 0 {
		return ""
	}
	f.args = append(f.args, n)
	return " LIMIT ?"
}

// collect scans every row, closing rows. err is the error from the query
// that produced rows.
func collect[T any](rows *sql.Rows, err error, scan func(rowScanner) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}
