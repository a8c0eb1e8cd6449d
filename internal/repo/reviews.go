package repo

import (
	"context"
	"database/sql"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

func (r Repo) InsertReview(ctx context.Context, tx *sql.Tx, rv domain.Review) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO reviews(id,specialist_id,author,rating,date,text,created_at) VALUES (?,?,?,?,?,?,?)`,
		rv.ID, rv.SpecialistID, rv.Author, rv.Rating, rv.Date, rv.Text, rv.CreatedAt)
	return err
}

// ListReviews returns a specialist's reviews newest first. Limit 0 means all.
func (r Repo) ListReviews(ctx context.Context, specialistID string, limit int) ([]domain.Review, error) {
	var w filter
	w.eq("specialist_id", specialistID)
	query := `SELECT id,specialist_id,author,rating,date,text,created_at FROM reviews` + w.where() + ` ORDER BY seq DESC` + w.limit(limit)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	return collect(rows, err, func(row rowScanner) (domain.Review, error) {
		var rv domain.Review
		err := row.Scan(&rv.ID, &rv.SpecialistID, &rv.Author, &rv.Rating, &rv.Date, &rv.Text, &rv.CreatedAt)
		return rv, err
	})
}
