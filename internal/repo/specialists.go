package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

const specialistColumns = `id,name,profession,rating,reviews_count,avatar_url,about,hourly_rate,categories_json,created_at`

// UpsertSpecialist writes the profile fields. Rating and review count are
// derived from reviews and left untouched on update.
func (r Repo) UpsertSpecialist(ctx context.Context, tx *sql.Tx, s domain.Specialist) error {
	cats, err := json.Marshal(nonNil(s.Categories))
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO specialists(id,name,profession,rating,reviews_count,avatar_url,about,hourly_rate,categories_json,created_at)
VALUES (?,?,?,0,0,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  name=excluded.name,
  profession=excluded.profession,
  avatar_url=excluded.avatar_url,
  about=excluded.about,
  hourly_rate=excluded.hourly_rate,
  categories_json=excluded.categories_json`,
		s.ID, s.Name, s.Profession, nullable(s.AvatarURL), nullable(s.About), s.HourlyRate, string(cats), s.CreatedAt)
	return err
}

func (r Repo) GetSpecialist(ctx context.Context, id string) (domain.Specialist, error) {
	return getSpecialist(ctx, r.DB, id)
}

func (r Repo) GetSpecialistTx(ctx context.Context, tx *sql.Tx, id string) (domain.Specialist, error) {
	return getSpecialist(ctx, tx, id)
}

func getSpecialist(ctx context.Context, q queryer, id string) (domain.Specialist, error) {
	s, err := scanSpecialist(q.QueryRowContext(ctx, `SELECT `+specialistColumns+` FROM specialists WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func scanSpecialist(row rowScanner) (domain.Specialist, error) {
	var s domain.Specialist
	var avatar, about sql.NullString
	var cats string
	if err := row.Scan(&s.ID, &s.Name, &s.Profession, &s.Rating, &s.ReviewsCount, &avatar, &about, &s.HourlyRate, &cats, &s.CreatedAt); err != nil {
		return s, err
	}
	s.AvatarURL = avatar.String
	s.About = about.String
	if err := json.Unmarshal([]byte(cats), &s.Categories); err != nil {
		return s, fmt.Errorf("specialist %s categories: %w", s.ID, err)
	}
	return s, nil
}

type SpecialistFilters struct {
	Category string
	// Query matches name or profession.
	Query           string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// ListSpecialists returns profiles without reviews or portfolio, newest first.
func (r Repo) ListSpecialists(ctx context.Context, f SpecialistFilters) ([]domain.Specialist, error) {
	var w filter
	if f.Category != "" {
		w.add("EXISTS (SELECT 1 FROM json_each(specialists.categories_json) WHERE value=?)", f.Category)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		w.add("(name LIKE ? OR profession LIKE ?)", like, like)
	}
	w.olderThan(f.CursorCreatedAt, f.CursorID)
	query := `SELECT ` + specialistColumns + ` FROM specialists` + w.where() + ` ORDER BY created_at DESC, id DESC` + w.limit(f.Limit)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	return collect(rows, err, scanSpecialist)
}

// RefreshSpecialistRating recomputes rating and review count from stored reviews.
func (r Repo) RefreshSpecialistRating(ctx context.Context, tx *sql.Tx, specialistID string) error {
	res, err := tx.ExecContext(ctx, `
UPDATE specialists SET
  rating=COALESCE((SELECT ROUND(AVG(rating),1) FROM reviews WHERE specialist_id=?),0),
  reviews_count=(SELECT COUNT(*) FROM reviews WHERE specialist_id=?)
WHERE id=?`, specialistID, specialistID, specialistID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) InsertPortfolioItem(ctx context.Context, tx *sql.Tx, p domain.PortfolioItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO portfolio_items(id,specialist_id,title,description,image_url,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.SpecialistID, p.Title, nullable(p.Description), nullable(p.ImageURL), p.CreatedAt)
	return err
}

func (r Repo) ListPortfolio(ctx context.Context, specialistID string) ([]domain.PortfolioItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,specialist_id,title,COALESCE(description,''),COALESCE(image_url,''),created_at FROM portfolio_items WHERE specialist_id=? ORDER BY created_at, id`, specialistID)
	return collect(rows, err, scanPortfolioItem)
}

func scanPortfolioItem(row rowScanner) (domain.PortfolioItem, error) {
	var p domain.PortfolioItem
	err := row.Scan(&p.ID, &p.SpecialistID, &p.Title, &p.Description, &p.ImageURL, &p.CreatedAt)
	return p, err
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
