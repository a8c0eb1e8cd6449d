package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

const taskColumns = `id,client_id,title,description,category,budget_min,budget_max,location,date,status,created_at,updated_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ClientID, t.Title, nullable(t.Description), t.Category, nullableFloatPtr(t.BudgetMin), nullableFloatPtr(t.BudgetMax),
		t.Location, t.Date, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

// UpdateTaskStatus moves a task and reports the previous status.
func (r Repo) UpdateTaskStatus(ctx context.Context, tx *sql.Tx, id string, status domain.TaskStatus, updatedAt string) (domain.TaskStatus, error) {
	t, err := getTask(ctx, tx, id)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id); err != nil {
		return "", err
	}
	return t.Status, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return getTask(ctx, tx, id)
}

func getTask(ctx context.Context, q queryer, id string) (domain.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var description sql.NullString
	var lo, hi sql.NullFloat64
	if err := row.Scan(&t.ID, &t.ClientID, &t.Title, &description, &t.Category, &lo, &hi,
		&t.Location, &t.Date, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	t.Description = description.String
	t.BudgetMin = floatPtr(lo)
	t.BudgetMax = floatPtr(hi)
	return t, nil
}

type TaskFilters struct {
	Status          string
	ClientID        string
	Category        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// ListTasks returns tasks newest first.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var w filter
	w.eq("status", f.Status)
	w.eq("client_id", f.ClientID)
	w.eq("category", f.Category)
	w.olderThan(f.CursorCreatedAt, f.CursorID)
	query := `SELECT ` + taskColumns + ` FROM tasks` + w.where() + ` ORDER BY created_at DESC, id DESC` + w.limit(f.Limit)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	return collect(rows, err, scanTask)
}
