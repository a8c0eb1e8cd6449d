package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

const offerColumns = `id,task_id,specialist_id,price,message,status,deal_id,created_at,updated_at`

// InsertOffer fails with ErrConflict when the specialist already made an
// offer on the task.
func (r Repo) InsertOffer(ctx context.Context, tx *sql.Tx, o domain.Offer) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO offers(`+offerColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		o.ID, o.TaskID, o.SpecialistID, o.Price, o.Message, o.Status, nullableStringPtr(o.DealID), o.CreatedAt, o.UpdatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("specialist %s already made an offer on task %s: %w", o.SpecialistID, o.TaskID, ErrConflict)
	}
	return err
}

// UpdateOfferStatus moves an offer that is still from. An offer that has
// moved on yields ErrConflict.
func (r Repo) UpdateOfferStatus(ctx context.Context, tx *sql.Tx, o domain.Offer, from domain.OfferStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE offers SET status=?, deal_id=?, updated_at=? WHERE id=? AND status=?`,
		o.Status, nullableStringPtr(o.DealID), o.UpdatedAt, o.ID, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	cur, err := getOffer(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("offer %s is %s, not %s: %w", o.ID, cur.Status, from, ErrConflict)
}

// RejectPendingOffers rejects every pending offer on a task except keep and
// returns the rejected ids.
func (r Repo) RejectPendingOffers(ctx context.Context, tx *sql.Tx, taskID, keep, updatedAt string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM offers WHERE task_id=? AND status=? AND id<>? ORDER BY id`, taskID, domain.OfferPending, keep)
	ids, err := collect(rows, err, func(row rowScanner) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE offers SET status=?, updated_at=? WHERE task_id=? AND status=? AND id<>?`,
		domain.OfferRejected, updatedAt, taskID, domain.OfferPending, keep); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r Repo) GetOffer(ctx context.Context, id string) (domain.Offer, error) {
	return getOffer(ctx, r.DB, id)
}

func (r Repo) GetOfferTx(ctx context.Context, tx *sql.Tx, id string) (domain.Offer, error) {
	return getOffer(ctx, tx, id)
}

func getOffer(ctx context.Context, q queryer, id string) (domain.Offer, error) {
	o, err := scanOffer(q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

func scanOffer(row rowScanner) (domain.Offer, error) {
	var o domain.Offer
	var dealID sql.NullString
	if err := row.Scan(&o.ID, &o.TaskID, &o.SpecialistID, &o.Price, &o.Message, &o.Status, &dealID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	o.DealID = stringPtr(dealID)
	return o, nil
}

type OfferFilters struct {
	TaskID       string
	SpecialistID string
	Status       string
}

// ListOffers returns offers newest first.
func (r Repo) ListOffers(ctx context.Context, f OfferFilters) ([]domain.Offer, error) {
	var w filter
	w.eq("task_id", f.TaskID)
	w.eq("specialist_id", f.SpecialistID)
	w.eq("status", f.Status)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+offerColumns+` FROM offers`+w.where()+` ORDER BY created_at DESC, id DESC`, w.args...)
	return collect(rows, err, scanOffer)
}
