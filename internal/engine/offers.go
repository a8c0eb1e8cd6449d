package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/engine/auth"
	"github.com/xumezzan/marketplace-project/internal/escrow"
	"github.com/xumezzan/marketplace-project/internal/events"
	"github.com/xumezzan/marketplace-project/internal/metrics"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

type OfferOptions struct {
	TaskID       string
	SpecialistID string
	Price        string
	Message      string
	ActorID      string
}

// SubmitOffer records a specialist's price for an open task. A specialist
// offers at most once per task.
func (e *Engine) SubmitOffer(ctx context.Context, opts OfferOptions) (domain.Offer, error) {
	if err := required("task_id", opts.TaskID); err != nil {
		return domain.Offer{}, err
	}
	if err := required("specialist_id", opts.SpecialistID); err != nil {
		return domain.Offer{}, err
	}
	if err := required("message", opts.Message); err != nil {
		return domain.Offer{}, err
	}
	price, err := decimal.NewFromString(strings.TrimSpace(opts.Price))
	if err != nil || !price.IsPositive() {
		return domain.Offer{}, ValidationError{Field: "price", Reason: "must be a positive decimal"}
	}
	if err := auth.RequireSpecialist(opts.ActorID, opts.SpecialistID, "submit an offer for", "task "+opts.TaskID); err != nil {
		return domain.Offer{}, err
	}

	now := e.stamp()
	o := domain.Offer{
		ID:           uuid.New().String(),
		TaskID:       opts.TaskID,
		SpecialistID: opts.SpecialistID,
		Price:        price.Round(2).StringFixed(2),
		Message:      strings.TrimSpace(opts.Message),
		Status:       domain.OfferPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Offer{}, err
	}
	defer tx.Rollback()
	task, err := e.Repo.GetTaskTx(ctx, tx, o.TaskID)
	if err != nil {
		return domain.Offer{}, err
	}
	if err := taskOpen(task); err != nil {
		return domain.Offer{}, err
	}
	if _, err := e.Repo.GetSpecialistTx(ctx, tx, o.SpecialistID); err != nil {
		return domain.Offer{}, err
	}
	if err := e.Repo.InsertOffer(ctx, tx, o); err != nil {
		return domain.Offer{}, err
	}
	if err := e.Events.Append(ctx, tx, events.OfferSubmitted, events.EntityOffer, o.ID, opts.ActorID, events.EventPayload{
		"task_id":       o.TaskID,
		"specialist_id": o.SpecialistID,
		"price":         o.Price,
	}); err != nil {
		return domain.Offer{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Offer{}, err
	}
	metrics.Offers.WithLabelValues("submitted").Inc()
	e.Log.Info().Str("offer_id", o.ID).Str("task_id", o.TaskID).Str("specialist_id", o.SpecialistID).Str("price", o.Price).Msg("offer submitted")
	return o, nil
}

// ListOffers returns offers newest first.
func (e *Engine) ListOffers(ctx context.Context, f repo.OfferFilters) ([]domain.Offer, error) {
	if f.TaskID != "" {
		if _, err := e.Repo.GetTask(ctx, f.TaskID); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListOffers(ctx, f)
}

func (e *Engine) GetOffer(ctx context.Context, id string) (domain.Offer, error) {
	return e.Repo.GetOffer(ctx, id)
}

// AcceptOffer opens an idle deal at the offered price, rejects the task's
// other pending offers and moves the task to in_progress, all at once. Only
// the task's client may accept.
func (e *Engine) AcceptOffer(ctx context.Context, offerID, actorID string) (domain.Offer, domain.Deal, error) {
	o, task, err := e.decidableOffer(ctx, offerID, actorID, "accept")
	if err != nil {
		return domain.Offer{}, domain.Deal{}, err
	}
	amount, err := decimal.NewFromString(o.Price)
	if err != nil {
		return domain.Offer{}, domain.Deal{}, fmt.Errorf("offer %s price: %w", o.ID, err)
	}
	key := escrow.Key{ClientID: task.ClientID, SpecialistID: o.SpecialistID, TaskID: task.ID}
	s, created := e.Deals.Open(key, amount)
	if !created {
		return domain.Offer{}, domain.Deal{}, fmt.Errorf("deal %s is already open for this task and specialist: %w", s.ID(), repo.ErrConflict)
	}

	now := e.stamp()
	d := domain.Deal{
		ID:           s.ID(),
		ClientID:     task.ClientID,
		SpecialistID: o.SpecialistID,
		TaskID:       &task.ID,
		Amount:       amount.StringFixed(2),
		Status:       string(escrow.StatusIdle),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.Status = domain.OfferAccepted
	o.DealID = &d.ID
	o.UpdatedAt = now
	if err := e.acceptOffer(ctx, o, d, actorID); err != nil {
		e.Deals.Discard(s.ID())
		return domain.Offer{}, domain.Deal{}, err
	}
	metrics.Offers.WithLabelValues("accepted").Inc()
	e.Log.Info().Str("offer_id", o.ID).Str("task_id", task.ID).Str("deal_id", d.ID).Str("amount", d.Amount).Msg("offer accepted")
	return o, d, nil
}

type offerEvent struct {
	typ, kind, id string
	payload       events.EventPayload
}

func (e *Engine) acceptOffer(ctx context.Context, o domain.Offer, d domain.Deal, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	prev, err := e.Repo.UpdateTaskStatus(ctx, tx, o.TaskID, domain.TaskInProgress, o.UpdatedAt)
	if err != nil {
		return err
	}
	if prev != domain.TaskOpen {
		return fmt.Errorf("task %s is %s: %w", o.TaskID, prev, repo.ErrConflict)
	}
	if err := e.Repo.InsertDeal(ctx, tx, d); err != nil {
		return err
	}
	if err := e.Repo.UpdateOfferStatus(ctx, tx, o, domain.OfferPending); err != nil {
		return err
	}
	rejected, err := e.Repo.RejectPendingOffers(ctx, tx, o.TaskID, o.ID, o.UpdatedAt)
	if err != nil {
		return err
	}

	evts := []offerEvent{
		{events.OfferAccepted, events.EntityOffer, o.ID, events.EventPayload{"task_id": o.TaskID, "deal_id": d.ID, "price": o.Price}},
		{events.DealOpened, events.EntityDeal, d.ID, events.EventPayload{"specialist_id": d.SpecialistID, "amount": d.Amount, "offer_id": o.ID}},
		{events.TaskStatusChanged, events.EntityTask, o.TaskID, events.EventPayload{"from": prev, "to": domain.TaskInProgress, "offer_id": o.ID}},
	}
	for _, id := range rejected {
		evts = append(evts, offerEvent{events.OfferRejected, events.EntityOffer, id, events.EventPayload{"task_id": o.TaskID, "accepted_offer_id": o.ID}})
	}
	for _, ev := range evts {
		if err := e.Events.Append(ctx, tx, ev.typ, ev.kind, ev.id, actorID, ev.payload); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.Offers.WithLabelValues("rejected").Add(float64(len(rejected)))
	return nil
}

// RejectOffer declines a pending offer. Only the task's client may reject.
func (e *Engine) RejectOffer(ctx context.Context, offerID, actorID string) (domain.Offer, error) {
	o, _, err := e.decidableOffer(ctx, offerID, actorID, "reject")
	if err != nil {
		return domain.Offer{}, err
	}
	o.Status = domain.OfferRejected
	o.UpdatedAt = e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Offer{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateOfferStatus(ctx, tx, o, domain.OfferPending); err != nil {
		return domain.Offer{}, err
	}
	if err := e.Events.Append(ctx, tx, events.OfferRejected, events.EntityOffer, o.ID, actorID, events.EventPayload{
		"task_id": o.TaskID,
	}); err != nil {
		return domain.Offer{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Offer{}, err
	}
	metrics.Offers.WithLabelValues("rejected").Inc()
	e.Log.Info().Str("offer_id", o.ID).Str("task_id", o.TaskID).Msg("offer rejected")
	return o, nil
}

// decidableOffer loads a pending offer on an open task owned by actorID.
func (e *Engine) decidableOffer(ctx context.Context, offerID, actorID, action string) (domain.Offer, domain.Task, error) {
	o, err := e.Repo.GetOffer(ctx, offerID)
	if err != nil {
		return domain.Offer{}, domain.Task{}, err
	}
	task, err := e.Repo.GetTask(ctx, o.TaskID)
	if err != nil {
		return domain.Offer{}, domain.Task{}, err
	}
	if err := auth.RequireClient(actorID, task.ClientID, action, "offer "+o.ID); err != nil {
		return domain.Offer{}, domain.Task{}, err
	}
	if o.Status != domain.OfferPending {
		return domain.Offer{}, domain.Task{}, fmt.Errorf("offer %s is %s: %w", o.ID, o.Status, repo.ErrConflict)
	}
	if err := taskOpen(task); err != nil {
		return domain.Offer{}, domain.Task{}, err
	}
	return o, task, nil
}

func taskOpen(t domain.Task) error {
	if t.Status != domain.TaskOpen {
		return fmt.Errorf("task %s is %s: %w", t.ID, t.Status, repo.ErrConflict)
	}
	return nil
}
