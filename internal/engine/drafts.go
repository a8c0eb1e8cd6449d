package engine

import (
	"context"
	"errors"
	"time"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/drafting"
	"github.com/xumezzan/marketplace-project/internal/metrics"
)

// DraftTask runs the drafting pipeline once. Nothing is stored.
func (e *Engine) DraftTask(ctx context.Context, rawInput string, locale domain.Locale, actorID string) (domain.TaskDraft, error) {
	start := time.Now()
	draft, err := e.Drafts.DraftFromDescription(ctx, rawInput, locale)
	outcome := draftOutcome(err)
	metrics.DraftsTotal.WithLabelValues(outcome).Inc()
	if outcome != metrics.OutcomeEmptyInput && outcome != metrics.OutcomeConfiguration {
		metrics.DraftLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		e.Log.Warn().Err(err).Str("client_id", actorID).Str("locale", string(locale)).Str("outcome", outcome).Msg("draft failed")
		return domain.TaskDraft{}, err
	}
	e.Log.Info().Str("client_id", actorID).Str("category", draft.SuggestedCategory).Msg("task drafted")
	return draft, nil
}

// DescribeTask generates a description for a known title and category.
func (e *Engine) DescribeTask(ctx context.Context, title, category string, locale domain.Locale, actorID string) (string, error) {
	text, err := e.Drafts.DescribeTask(ctx, title, category, locale)
	if err != nil {
		e.Log.Warn().Err(err).Str("client_id", actorID).Msg("describe failed")
		return "", err
	}
	return text, nil
}

func draftOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, drafting.ErrEmptyInput):
		return metrics.OutcomeEmptyInput
	case errors.Is(err, drafting.ErrConfiguration):
		return metrics.OutcomeConfiguration
	case errors.Is(err, drafting.ErrSchema):
		return metrics.OutcomeSchema
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeUpstream
	}
}
