package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

const dealColumns = `id,client_id,specialist_id,task_id,amount,status,hold_id,reason,commission,payout,created_at,updated_at,settled_at,lease_until`

func (r Repo) InsertDeal(ctx context.Context, tx *sql.Tx, d domain.Deal) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO deals(`+dealColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.ClientID, d.SpecialistID, nullableStringPtr(d.TaskID), d.Amount, d.Status,
		nullableStringPtr(d.HoldID), nullableStringPtr(d.Reason), nullableStringPtr(d.Commission), nullableStringPtr(d.Payout),
		d.CreatedAt, d.UpdatedAt, nullableStringPtr(d.SettledAt), nullableStringPtr(d.LeaseUntil))
	return err
}

// UpdateDealState stores the state fields of a deal whose stored status is
// still from. A row that has moved on yields ErrConflict.
func (r Repo) UpdateDealState(ctx context.Context, tx *sql.Tx, d domain.Deal, from string) error {
	res, err := tx.ExecContext(ctx, `UPDATE deals SET status=?, hold_id=?, reason=?, commission=?, payout=?, updated_at=?, settled_at=?, lease_until=? WHERE id=? AND status=?`,
		d.Status, nullableStringPtr(d.HoldID), nullableStringPtr(d.Reason), nullableStringPtr(d.Commission), nullableStringPtr(d.Payout),
		d.UpdatedAt, nullableStringPtr(d.SettledAt), nullableStringPtr(d.LeaseUntil), d.ID, from)
	if err != nil {
		return err
	}
	return dealWritten(ctx, tx, res, d.ID, from)
}

// DeleteDeal removes a deal whose stored status is still from.
func (r Repo) DeleteDeal(ctx context.Context, tx *sql.Tx, id, from string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM deals WHERE id=? AND status=?`, id, from)
	if err != nil {
		return err
	}
	return dealWritten(ctx, tx, res, id, from)
}

func dealWritten(ctx context.Context, tx *sql.Tx, res sql.Result, id, from string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM deals WHERE id=?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("deal %s is %s, not %s: %w", id, status, from, ErrConflict)
}

func (r Repo) GetDeal(ctx context.Context, id string) (domain.Deal, error) {
	return getDeal(ctx, r.DB, id)
}

func (r Repo) GetDealTx(ctx context.Context, tx *sql.Tx, id string) (domain.Deal, error) {
	return getDeal(ctx, tx, id)
}

func getDeal(ctx context.Context, q queryer, id string) (domain.Deal, error) {
	d, err := scanDeal(q.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	return d, err
}

func scanDeal(row rowScanner) (domain.Deal, error) {
	var d domain.Deal
	var taskID, holdID, reason, commission, payout, settledAt, leaseUntil sql.NullString
	if err := row.Scan(&d.ID, &d.ClientID, &d.SpecialistID, &taskID, &d.Amount, &d.Status,
		&holdID, &reason, &commission, &payout, &d.CreatedAt, &d.UpdatedAt, &settledAt, &leaseUntil); err != nil {
		return d, err
	}
	d.TaskID = stringPtr(taskID)
	d.HoldID = stringPtr(holdID)
	d.Reason = stringPtr(reason)
	d.Commission = stringPtr(commission)
	d.Payout = stringPtr(payout)
	d.SettledAt = stringPtr(settledAt)
	d.LeaseUntil = stringPtr(leaseUntil)
	return d, nil
}

type DealFilters struct {
	ClientID     string
	SpecialistID string
	Statuses     []string
}

// ListDeals returns deals oldest first.
func (r Repo) ListDeals(ctx context.Context, f DealFilters) ([]domain.Deal, error) {
	var w filter
	w.eq("client_id", f.ClientID)
	w.eq("specialist_id", f.SpecialistID)
	w.in("status", f.Statuses)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+dealColumns+` FROM deals`+w.where()+` ORDER BY created_at, id`, w.args...)
	return collect(rows, err, scanDeal)
}
