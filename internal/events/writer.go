package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types.
const (
	TaskCreated        = "task.created"
	TaskStatusChanged  = "task.status_changed"
	SpecialistUpserted = "specialist.upserted"
	PortfolioItemAdded = "specialist.portfolio_added"
	ReviewSubmitted    = "review.submitted"
	DealOpened         = "deal.opened"
	DealTransitioned   = "deal.transitioned"
	DealDiscarded      = "deal.discarded"
	OfferSubmitted     = "offer.submitted"
	OfferAccepted      = "offer.accepted"
	OfferRejected      = "offer.rejected"
)

const (
	SystemActor = "system"

	EntityTask       = "task"
	EntitySpecialist = "specialist"
	EntityDeal       = "deal"
	EntityReview     = "review"
	EntityOffer      = "offer"
)

// Writer appends to the audit log inside the caller's transaction.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event. An empty actor is recorded as SystemActor; the
// event commits or rolls back with tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	if actorID == "" {
		actorID = SystemActor
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evtType, err)
	}
	var entity sql.NullString
	if entityID != "" {
		entity = sql.NullString{String: entityID, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339Nano), evtType, entityKind, entity, actorID, string(data)); err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}
