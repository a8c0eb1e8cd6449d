package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/events"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

type SpecialistOptions struct {
	ID         string
	Name       string
	Profession string
	AvatarURL  string
	About      string
	HourlyRate string
	Categories []string
	ActorID    string
}

// UpsertSpecialist creates or updates a profile. An empty ID creates a new one.
func (e *Engine) UpsertSpecialist(ctx context.Context, opts SpecialistOptions) (domain.Specialist, error) {
	if err := required("name", opts.Name); err != nil {
		return domain.Specialist{}, err
	}
	if err := required("profession", opts.Profession); err != nil {
		return domain.Specialist{}, err
	}
	rate := strings.TrimSpace(opts.HourlyRate)
	if rate == "" {
		rate = "0"
	}
	d, err := decimal.NewFromString(rate)
	if err != nil || d.IsNegative() {
		return domain.Specialist{}, ValidationError{Field: "hourly_rate", Reason: "must be a non-negative decimal"}
	}
	cats := make([]string, 0, len(opts.Categories))
	for _, c := range opts.Categories {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	s := domain.Specialist{
		ID:         id,
		Name:       strings.TrimSpace(opts.Name),
		Profession: strings.TrimSpace(opts.Profession),
		AvatarURL:  strings.TrimSpace(opts.AvatarURL),
		About:      strings.TrimSpace(opts.About),
		HourlyRate: d.String(),
		Categories: cats,
		CreatedAt:  e.stamp(),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Specialist{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertSpecialist(ctx, tx, s); err != nil {
		return domain.Specialist{}, err
	}
	if err := e.Events.Append(ctx, tx, events.SpecialistUpserted, events.EntitySpecialist, s.ID, opts.ActorID, events.EventPayload{
		"name":       s.Name,
		"profession": s.Profession,
	}); err != nil {
		return domain.Specialist{}, err
	}
	stored, err := e.Repo.GetSpecialistTx(ctx, tx, s.ID)
	if err != nil {
		return domain.Specialist{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Specialist{}, err
	}
	return stored, nil
}

// GetSpecialist returns the profile with its portfolio and newest-first reviews.
func (e *Engine) GetSpecialist(ctx context.Context, id string) (domain.Specialist, error) {
	s, err := e.Repo.GetSpecialist(ctx, id)
	if err != nil {
		return s, err
	}
	if s.Portfolio, err = e.Repo.ListPortfolio(ctx, id); err != nil {
		return s, err
	}
	if s.Reviews, err = e.Repo.ListReviews(ctx, id, 0); err != nil {
		return s, err
	}
	return s, nil
}

func (e *Engine) ListSpecialists(ctx context.Context, f repo.SpecialistFilters) ([]domain.Specialist, error) {
	return e.Repo.ListSpecialists(ctx, f)
}

type PortfolioOptions struct {
	SpecialistID string
	Title        string
	Description  string
	ImageURL     string
	ActorID      string
}

func (e *Engine) AddPortfolioItem(ctx context.Context, opts PortfolioOptions) (domain.PortfolioItem, error) {
	if err := required("title", opts.Title); err != nil {
		return domain.PortfolioItem{}, err
	}
	p := domain.PortfolioItem{
		ID:           uuid.New().String(),
		SpecialistID: opts.SpecialistID,
		Title:        strings.TrimSpace(opts.Title),
		Description:  strings.TrimSpace(opts.Description),
		ImageURL:     strings.TrimSpace(opts.ImageURL),
		CreatedAt:    e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PortfolioItem{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetSpecialistTx(ctx, tx, opts.SpecialistID); err != nil {
		return domain.PortfolioItem{}, err
	}
	if err := e.Repo.InsertPortfolioItem(ctx, tx, p); err != nil {
		return domain.PortfolioItem{}, err
	}
	if err := e.Events.Append(ctx, tx, events.PortfolioItemAdded, events.EntitySpecialist, p.SpecialistID, opts.ActorID, events.EventPayload{
		"item_id": p.ID,
		"title":   p.Title,
	}); err != nil {
		return domain.PortfolioItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PortfolioItem{}, err
	}
	return p, nil
}
