package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xumezzan/marketplace-project/internal/config"
	"github.com/xumezzan/marketplace-project/internal/drafting"
	"github.com/xumezzan/marketplace-project/internal/escrow"
	"github.com/xumezzan/marketplace-project/internal/events"
	"github.com/xumezzan/marketplace-project/internal/repo"
	"github.com/xumezzan/marketplace-project/internal/reviews"
)

// ValidationError is a caller mistake in an engine request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
	Log    zerolog.Logger

	Drafts *drafting.Pipeline
	// Reserver places the escrow hold. Defaults to a simulated reserver that
	// confirms after the configured settle delay.
	Reserver escrow.Reserver
	Deals    *escrow.Registry
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.Log = l } }

func WithDrafts(p *drafting.Pipeline) Option { return func(e *Engine) { e.Drafts = p } }

func WithReserver(r escrow.Reserver) Option { return func(e *Engine) { e.Reserver = r } }

func New(db *sql.DB, cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
		Log:    zerolog.Nop(),
	}
	e.Events = events.Writer{DB: db, Now: e.now}
	for _, opt := range opts {
		opt(e)
	}
	if e.Drafts == nil {
		e.Drafts = drafting.New(nil, drafting.WithCategories(cfg.Categories), drafting.WithLogger(e.Log))
	}
	if e.Reserver == nil {
		e.Reserver = escrow.SimulatedReserver{Delay: cfg.Escrow.SettleDelay}
	}
	e.Deals = escrow.NewRegistry(
		escrow.WithReserver(escrow.ReserverFunc(func(ctx context.Context, h escrow.Hold) error {
			return e.Reserver.Reserve(ctx, h)
		})),
		escrow.WithReservationTimeout(cfg.Escrow.ReservationTimeout),
		escrow.WithCommissionRate(cfg.Escrow.Rate()),
		escrow.WithClock(e.now),
		escrow.WithCommitter(e.commitTransition),
		escrow.WithObserver(e.observeTransition),
	)
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339Nano)
}

// Close drops every live escrow session. In-flight reservations never land.
func (e *Engine) Close() {
	e.Deals.Close()
}

func (e *Engine) reviewSubmitter() reviews.Submitter {
	return reviews.Submitter{DefaultRating: e.Config.Reviews.DefaultRating, Now: e.now}
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
