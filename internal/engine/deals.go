package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/engine/auth"
	"github.com/xumezzan/marketplace-project/internal/escrow"
	"github.com/xumezzan/marketplace-project/internal/events"
	"github.com/xumezzan/marketplace-project/internal/metrics"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

// InterruptedReason marks reservations whose lease ran out before an outcome
// was stored, typically because the process that started them stopped.
const InterruptedReason = "reservation interrupted"

// leaseGrace is added to the reservation timeout so the owning process can
// store a timeout of its own before anyone else fails the deal.
const leaseGrace = 5 * time.Second

type DealOpenOptions struct {
	ClientID     string
	SpecialistID string
	TaskID       string
	// Amount defaults to the specialist hourly rate.
	Amount string
}

// OpenDeal returns the active deal for (client, specialist, task) or opens an
// idle one. The boolean reports whether a deal was created.
func (e *Engine) OpenDeal(ctx context.Context, opts DealOpenOptions) (domain.Deal, bool, error) {
	if err := required("client_id", opts.ClientID); err != nil {
		return domain.Deal{}, false, err
	}
	if err := required("specialist_id", opts.SpecialistID); err != nil {
		return domain.Deal{}, false, err
	}
	spec, err := e.Repo.GetSpecialist(ctx, opts.SpecialistID)
	if err != nil {
		return domain.Deal{}, false, err
	}
	if opts.TaskID != "" {
		task, err := e.Repo.GetTask(ctx, opts.TaskID)
		if err != nil {
			return domain.Deal{}, false, err
		}
		if err := auth.RequireClient(opts.ClientID, task.ClientID, "open a deal for", "task "+task.ID); err != nil {
			return domain.Deal{}, false, err
		}
	}
	raw := strings.TrimSpace(opts.Amount)
	if raw == "" {
		raw = spec.HourlyRate
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return domain.Deal{}, false, ValidationError{Field: "amount", Reason: "must be a positive decimal"}
	}
	amount = amount.Round(2)

	key := escrow.Key{ClientID: opts.ClientID, SpecialistID: opts.SpecialistID, TaskID: opts.TaskID}
	s, created := e.Deals.Open(key, amount)
	if !created {
		d, err := e.Repo.GetDeal(ctx, s.ID())
		return d, false, err
	}

	now := e.stamp()
	d := domain.Deal{
		ID:           s.ID(),
		ClientID:     opts.ClientID,
		SpecialistID: opts.SpecialistID,
		Amount:       amount.StringFixed(2),
		Status:       string(escrow.StatusIdle),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if opts.TaskID != "" {
		d.TaskID = &opts.TaskID
	}
	if err := e.insertDeal(ctx, d); err != nil {
		e.Deals.Discard(s.ID())
		return domain.Deal{}, false, err
	}
	e.Log.Info().Str("deal_id", d.ID).Str("client_id", d.ClientID).Str("specialist_id", d.SpecialistID).Str("amount", d.Amount).Msg("deal opened")
	return d, true, nil
}

func (e *Engine) insertDeal(ctx context.Context, d domain.Deal) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDeal(ctx, tx, d); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.DealOpened, events.EntityDeal, d.ID, d.ClientID, events.EventPayload{
		"specialist_id": d.SpecialistID,
		"amount":        d.Amount,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Hire starts the escrow reservation. The returned deal is escrow_pending;
// it moves on once the reserver answers.
func (e *Engine) Hire(ctx context.Context, dealID, actorID string) (domain.Deal, error) {
	s, err := e.clientSession(ctx, dealID, actorID, "hire")
	if err != nil {
		return domain.Deal{}, err
	}
	if err := s.Hire(ctx); err != nil {
		return domain.Deal{}, err
	}
	return e.Repo.GetDeal(ctx, dealID)
}

func (e *Engine) ConfirmCompletion(ctx context.Context, dealID, actorID string) (domain.Deal, error) {
	s, err := e.clientSession(ctx, dealID, actorID, "confirm")
	if err != nil {
		return domain.Deal{}, err
	}
	if _, err := s.ConfirmCompletion(); err != nil {
		return domain.Deal{}, err
	}
	return e.Repo.GetDeal(ctx, dealID)
}

func (e *Engine) DisputeDeal(ctx context.Context, dealID, actorID, reason string) (domain.Deal, error) {
	s, err := e.clientSession(ctx, dealID, actorID, "dispute")
	if err != nil {
		return domain.Deal{}, err
	}
	if err := s.Dispute(reason); err != nil {
		return domain.Deal{}, err
	}
	return e.Repo.GetDeal(ctx, dealID)
}

// DiscardDeal drops a deal that has not reached work_in_progress. A pending
// reservation is canceled and never lands.
func (e *Engine) DiscardDeal(ctx context.Context, dealID, actorID string) error {
	s, err := e.clientSession(ctx, dealID, actorID, "discard")
	if err != nil {
		return err
	}
	from, err := s.CloseIf("discard", escrow.StatusIdle, escrow.StatusEscrowPending)
	if err != nil {
		return err
	}
	e.Deals.Discard(dealID)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteDeal(ctx, tx, dealID, string(from)); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.DealDiscarded, events.EntityDeal, dealID, actorID, events.EventPayload{
		"from": from,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Log.Info().Str("deal_id", dealID).Str("from", string(from)).Msg("deal discarded")
	return nil
}

func (e *Engine) GetDeal(ctx context.Context, id string) (domain.Deal, error) {
	return e.Repo.GetDeal(ctx, id)
}

func (e *Engine) ListDeals(ctx context.Context, f repo.DealFilters) ([]domain.Deal, error) {
	return e.Repo.ListDeals(ctx, f)
}

// WaitDeal blocks until the deal has no reservation in flight.
func (e *Engine) WaitDeal(ctx context.Context, id string) error {
	s, ok := e.Deals.Get(id)
	if !ok {
		return nil
	}
	return s.Wait(ctx)
}

func (e *Engine) clientSession(ctx context.Context, dealID, actorID, action string) (*escrow.Session, error) {
	s, err := e.session(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireClient(actorID, s.Key().ClientID, action, "deal "+dealID); err != nil {
		return nil, err
	}
	return s, nil
}

// session finds the live session for a deal. Storage is authoritative: a
// registered session whose status no longer matches the stored one (another
// process moved the deal, or an outcome could not be stored) is dropped and
// rebuilt, and a pending deal whose lease ran out is failed first.
func (e *Engine) session(ctx context.Context, dealID string) (*escrow.Session, error) {
	d, err := e.Repo.GetDeal(ctx, dealID)
	if errors.Is(err, repo.ErrNotFound) {
		e.Deals.Discard(dealID)
	}
	if err != nil {
		return nil, err
	}
	if e.leaseExpired(d) {
		e.Deals.Discard(dealID)
		if err := e.failInterrupted(ctx, d); err != nil && !errors.Is(err, repo.ErrConflict) {
			return nil, err
		}
		if d, err = e.Repo.GetDeal(ctx, dealID); err != nil {
			return nil, err
		}
	}
	if s, ok := e.Deals.Get(dealID); ok {
		if string(s.Status()) == d.Status {
			return s, nil
		}
		// A local transition may have landed after the read above.
		if d, err = e.Repo.GetDeal(ctx, dealID); err != nil {
			return nil, err
		}
		if string(s.Status()) == d.Status {
			return s, nil
		}
		e.Log.Debug().Str("deal_id", dealID).Str("session", string(s.Status())).Str("stored", d.Status).Msg("stale escrow session reloaded")
		e.Deals.Discard(dealID)
	}
	return e.restore(d)
}

// leaseExpired reports a pending deal that no process is still reserving.
// Deals stored before leases existed count as expired.
func (e *Engine) leaseExpired(d domain.Deal) bool {
	if d.Status != string(escrow.StatusEscrowPending) {
		return false
	}
	if d.LeaseUntil == nil {
		return true
	}
	until, err := time.Parse(time.RFC3339Nano, *d.LeaseUntil)
	return err != nil || e.now().After(until)
}

func (e *Engine) restore(d domain.Deal) (*escrow.Session, error) {
	st, err := stateFromDeal(d)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("deal %s amount: %w", d.ID, err)
	}
	return e.Deals.Restore(dealKey(d), amount, escrow.WithID(d.ID), escrow.WithState(st)), nil
}

// Rehydrate restores live deals after a restart. Idle and work_in_progress
// deals resume. A pending deal fails only once its lease has run out; until
// then another process may still be reserving it, and it is loaded on demand.
func (e *Engine) Rehydrate(ctx context.Context) (int, error) {
	deals, err := e.Repo.ListDeals(ctx, repo.DealFilters{Statuses: []string{
		string(escrow.StatusIdle), string(escrow.StatusEscrowPending), string(escrow.StatusWorkInProgress),
	}})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range deals {
		if d.Status == string(escrow.StatusEscrowPending) {
			if !e.leaseExpired(d) {
				continue
			}
			if err := e.failInterrupted(ctx, d); err != nil && !errors.Is(err, repo.ErrConflict) {
				return n, err
			}
			continue
		}
		if _, err := e.restore(d); err != nil {
			return n, err
		}
		n++
	}
	e.Log.Info().Int("deals", n).Msg("escrow sessions restored")
	return n, nil
}

func (e *Engine) failInterrupted(ctx context.Context, d domain.Deal) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	reason := InterruptedReason
	d.Status = string(escrow.StatusReservationFailed)
	d.Reason = &reason
	d.LeaseUntil = nil
	d.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateDealState(ctx, tx, d, string(escrow.StatusEscrowPending)); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.DealTransitioned, events.EntityDeal, d.ID, events.SystemActor, events.EventPayload{
		"from":   escrow.StatusEscrowPending,
		"to":     escrow.StatusReservationFailed,
		"reason": reason,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.EscrowTransitions.WithLabelValues(string(escrow.StatusReservationFailed)).Inc()
	e.Log.Warn().Str("deal_id", d.ID).Msg("pending reservation interrupted")
	return nil
}

// commitTransition stores a session transition before the session applies
// it: the deal row, the linked task status and one event per change. The
// write is conditional on the stored status still being t.From.
func (e *Engine) commitTransition(t escrow.Transition) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := e.persistTransition(ctx, t)
	if err != nil {
		e.Log.Error().Err(err).Str("deal_id", t.SessionID).
			Str("from", string(t.From.Status())).Str("to", string(t.To.Status())).
			Msg("persist escrow transition")
	}
	return err
}

// observeTransition runs after a transition is stored and applied.
func (e *Engine) observeTransition(t escrow.Transition) {
	to := t.To.Status()
	metrics.EscrowTransitions.WithLabelValues(string(to)).Inc()
	log := e.Log.With().Str("deal_id", t.SessionID).Str("from", string(t.From.Status())).Str("to", string(to)).Logger()
	if t.Err != nil {
		log.Warn().Err(t.Err).Msg("escrow transition")
		return
	}
	log.Info().Msg("escrow transition")
}

func (e *Engine) persistTransition(ctx context.Context, t escrow.Transition) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	d, err := e.Repo.GetDealTx(ctx, tx, t.SessionID)
	if err != nil {
		return err
	}
	applyState(&d, t.To)
	d.UpdatedAt = t.At.UTC().Format(time.RFC3339Nano)
	d.LeaseUntil = nil
	if _, ok := t.To.(escrow.EscrowPending); ok {
		d.LeaseUntil = strPtr(t.At.Add(e.Config.Escrow.ReservationTimeout + leaseGrace).UTC().Format(time.RFC3339Nano))
	}
	if err := e.Repo.UpdateDealState(ctx, tx, d, string(t.From.Status())); err != nil {
		return err
	}

	payload := events.EventPayload{"from": t.From.Status(), "to": t.To.Status()}
	if d.Reason != nil {
		payload["reason"] = *d.Reason
	}
	if d.Payout != nil {
		payload["commission"] = *d.Commission
		payload["payout"] = *d.Payout
	}
	actor := t.Key.ClientID
	switch t.To.(type) {
	case escrow.WorkInProgress, escrow.ReservationFailed:
		actor = events.SystemActor
	}
	if err := e.Events.Append(ctx, tx, events.DealTransitioned, events.EntityDeal, d.ID, actor, payload); err != nil {
		return err
	}

	if d.TaskID != nil {
		var next domain.TaskStatus
		switch t.To.(type) {
		case escrow.WorkInProgress:
			next = domain.TaskInProgress
		case escrow.Completed:
			next = domain.TaskCompleted
		}
		if next != "" {
			prev, err := e.Repo.UpdateTaskStatus(ctx, tx, *d.TaskID, next, d.UpdatedAt)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			if err == nil && prev != next {
				if err := e.Events.Append(ctx, tx, events.TaskStatusChanged, events.EntityTask, *d.TaskID, actor, events.EventPayload{
					"from":    prev,
					"to":      next,
					"deal_id": d.ID,
				}); err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}

func applyState(d *domain.Deal, st escrow.State) {
	d.Status = string(st.Status())
	switch v := st.(type) {
	case escrow.EscrowPending:
		d.HoldID = strPtr(v.HoldID)
	case escrow.WorkInProgress:
		d.HoldID = strPtr(v.HoldID)
	case escrow.Completed:
		d.HoldID = strPtr(v.HoldID)
		d.Commission = strPtr(v.Settlement.Commission.StringFixed(2))
		d.Payout = strPtr(v.Settlement.Payout.StringFixed(2))
		d.SettledAt = strPtr(v.Settlement.SettledAt.UTC().Format(time.RFC3339Nano))
	case escrow.ReservationFailed:
		d.Reason = strPtr(v.Reason)
	case escrow.Disputed:
		d.Reason = strPtr(v.Reason)
	}
}

func stateFromDeal(d domain.Deal) (escrow.State, error) {
	status, ok := escrow.ParseStatus(d.Status)
	if !ok {
		return nil, fmt.Errorf("deal %s has unknown status %q", d.ID, d.Status)
	}
	updated, _ := time.Parse(time.RFC3339Nano, d.UpdatedAt)
	switch status {
	case escrow.StatusIdle:
		return escrow.Idle{}, nil
	case escrow.StatusEscrowPending:
		return escrow.EscrowPending{HoldID: deref(d.HoldID), Since: updated}, nil
	case escrow.StatusWorkInProgress:
		return escrow.WorkInProgress{HoldID: deref(d.HoldID), LockedAt: updated}, nil
	case escrow.StatusCompleted:
		st := escrow.Completed{HoldID: deref(d.HoldID)}
		st.Settlement.Amount, _ = decimal.NewFromString(d.Amount)
		st.Settlement.Commission, _ = decimal.NewFromString(deref(d.Commission))
		st.Settlement.Payout, _ = decimal.NewFromString(deref(d.Payout))
		st.Settlement.SettledAt, _ = time.Parse(time.RFC3339Nano, deref(d.SettledAt))
		return st, nil
	case escrow.StatusReservationFailed:
		return escrow.ReservationFailed{Reason: deref(d.Reason), FailedAt: updated}, nil
	default:
		return escrow.Disputed{Reason: deref(d.Reason), OpenedAt: updated}, nil
	}
}

func dealKey(d domain.Deal) escrow.Key {
	return escrow.Key{ClientID: d.ClientID, SpecialistID: d.SpecialistID, TaskID: deref(d.TaskID)}
}

func strPtr(v string) *string { return &v }

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
