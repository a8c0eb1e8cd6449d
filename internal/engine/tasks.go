package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/events"
	"github.com/xumezzan/marketplace-project/internal/metrics"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

// TaskCreateOptions are the confirmed fields of a new task.
type TaskCreateOptions struct {
	ClientID    string
	Title       string
	Description string
	Category    string
	BudgetMin   *float64
	BudgetMax   *float64
	Location    string
	Date        string
}

func (e *Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if err := required("client_id", opts.ClientID); err != nil {
		return domain.Task{}, err
	}
	if err := required("title", opts.Title); err != nil {
		return domain.Task{}, err
	}
	if err := required("category", opts.Category); err != nil {
		return domain.Task{}, err
	}
	if (opts.BudgetMin != nil && *opts.BudgetMin < 0) || (opts.BudgetMax != nil && *opts.BudgetMax < 0) {
		return domain.Task{}, ValidationError{Field: "budget", Reason: "must not be negative"}
	}
	if opts.BudgetMin != nil && opts.BudgetMax != nil && *opts.BudgetMin > *opts.BudgetMax {
		return domain.Task{}, ValidationError{Field: "budget", Reason: "budget_min must not exceed budget_max"}
	}
	now := e.stamp()
	t := domain.Task{
		ID:          uuid.New().String(),
		ClientID:    opts.ClientID,
		Title:       strings.TrimSpace(opts.Title),
		Description: strings.TrimSpace(opts.Description),
		Category:    strings.TrimSpace(opts.Category),
		BudgetMin:   opts.BudgetMin,
		BudgetMax:   opts.BudgetMax,
		Location:    strings.TrimSpace(opts.Location),
		Date:        strings.TrimSpace(opts.Date),
		Status:      domain.TaskOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TaskCreated, events.EntityTask, t.ID, opts.ClientID, events.EventPayload{
		"title":    t.Title,
		"category": t.Category,
		"status":   t.Status,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	metrics.TasksCreated.Inc()
	e.Log.Info().Str("task_id", t.ID).Str("client_id", t.ClientID).Msg("task created")
	return t, nil
}

func (e *Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, id)
}

func (e *Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	if f.Status != "" {
		switch domain.TaskStatus(f.Status) {
		case domain.TaskOpen, domain.TaskInProgress, domain.TaskCompleted:
		default:
			return nil, ValidationError{Field: "status", Reason: "must be open, in_progress or completed"}
		}
	}
	return e.Repo.ListTasks(ctx, f)
}
