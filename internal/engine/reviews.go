package engine

import (
	"context"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/events"
	"github.com/xumezzan/marketplace-project/internal/metrics"
)

type ReviewOptions struct {
	SpecialistID string
	Author       string
	Text         string
	// Rating 0 takes the configured default.
	Rating  int
	ActorID string
}

// SubmitReview stores a review at the head of the specialist's list and
// refreshes the specialist rating.
func (e *Engine) SubmitReview(ctx context.Context, opts ReviewOptions) (domain.Review, error) {
	rv, err := e.reviewSubmitter().Build(opts.SpecialistID, opts.Author, opts.Text, opts.Rating)
	if err != nil {
		return domain.Review{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Review{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetSpecialistTx(ctx, tx, opts.SpecialistID); err != nil {
		return domain.Review{}, err
	}
	if err := e.Repo.InsertReview(ctx, tx, rv); err != nil {
		return domain.Review{}, err
	}
	if err := e.Repo.RefreshSpecialistRating(ctx, tx, opts.SpecialistID); err != nil {
		return domain.Review{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ReviewSubmitted, events.EntityReview, rv.ID, opts.ActorID, events.EventPayload{
		"specialist_id": rv.SpecialistID,
		"rating":        rv.Rating,
	}); err != nil {
		return domain.Review{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Review{}, err
	}
	metrics.ReviewsSubmitted.Inc()
	e.Log.Info().Str("specialist_id", rv.SpecialistID).Int("rating", rv.Rating).Msg("review submitted")
	return rv, nil
}

func (e *Engine) ListReviews(ctx context.Context, specialistID string, limit int) ([]domain.Review, error) {
	if _, err := e.Repo.GetSpecialist(ctx, specialistID); err != nil {
		return nil, err
	}
	return e.Repo.ListReviews(ctx, specialistID, limit)
}
