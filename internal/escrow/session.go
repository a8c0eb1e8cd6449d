// Package escrow models the "safe deal" lifecycle between a client and a
// specialist as a forward-only state machine:
//
//	idle -> escrow_pending -> work_in_progress -> completed
//	                       \-> reservation_failed  \-> disputed
//
// A Session only records intent and state; holding funds is delegated to a
// Reserver.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultSettleDelay        = 1500 * time.Millisecond
	DefaultReservationTimeout = 30 * time.Second
)

// DefaultCommissionRate is the platform share taken on completion.
var DefaultCommissionRate = decimal.RequireFromString("0.10")

// Key identifies one engagement. At most one active session exists per key.
type Key struct {
	ClientID     string
	SpecialistID string
	TaskID       string
}

// Hold is a funds reservation request.
type Hold struct {
	ID     string
	Key    Key
	Amount decimal.Decimal
}

// Reserver reserves funds for a hold and returns once the payments side has
// confirmed, failed, or ctx is done.
type Reserver interface {
	Reserve(ctx context.Context, hold Hold) error
}

type ReserverFunc func(ctx context.Context, hold Hold) error

func (f ReserverFunc) Reserve(ctx context.Context, hold Hold) error { return f(ctx, hold) }

// SimulatedReserver confirms every hold after a fixed delay.
type SimulatedReserver struct {
	Delay time.Duration
}

func (r SimulatedReserver) Reserve(ctx context.Context, _ Hold) error {
	t := time.NewTimer(r.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transition is delivered to observers, in order, for every state change.
type Transition struct {
	SessionID string
	Key       Key
	Amount    decimal.Decimal
	From      State
	To        State
	At        time.Time
	// Err is set for failure transitions and wraps ErrReservationFailed.
	Err error
}

type Observer func(Transition)

// Committer stores a transition before the session applies it. A failed
// commit leaves the session in its previous state and the error goes back to
// the caller of the operation.
type Committer func(Transition) error

type Session struct {
	id     string
	key    Key
	amount decimal.Decimal

	reserver  Reserver
	timeout   time.Duration
	rate      decimal.Decimal
	now       func() time.Time
	observers []Observer
	commit    Committer

	mu       sync.Mutex
	state    State
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
	doneErr  error
	queue    []Transition
	flushing bool
}

type Option func(*Session)

func WithID(id string) Option { return func(s *Session) { s.id = id } }

func WithReserver(r Reserver) Option { return func(s *Session) { s.reserver = r } }

func WithReservationTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

func WithCommissionRate(rate decimal.Decimal) Option {
	return func(s *Session) { s.rate = rate }
}

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func WithObserver(o Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

// WithCommitter makes every transition durable before it is applied.
func WithCommitter(c Committer) Option { return func(s *Session) { s.commit = c } }

// WithState resumes a session in a previously stored state.
func WithState(st State) Option { return func(s *Session) { s.state = st } }

// NewSession creates a session in idle unless WithState says otherwise.
func NewSession(key Key, amount decimal.Decimal, opts ...Option) *Session {
	s := &Session{
		id:       uuid.New().String(),
		key:      key,
		amount:   amount,
		reserver: SimulatedReserver{Delay: DefaultSettleDelay},
		timeout:  DefaultReservationTimeout,
		rate:     DefaultCommissionRate,
		now:      time.Now,
		state:    Idle{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Key() Key                { return s.key }
func (s *Session) Amount() decimal.Decimal { return s.amount }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() Status { return s.State().Status() }

// Hire moves idle to escrow_pending and starts the reservation. It is valid
// only from idle; a second call while pending is rejected.
func (s *Session) Hire(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if _, ok := s.state.(Idle); !ok {
		from := s.state.Status()
		s.mu.Unlock()
		return InvalidTransitionError{Op: "hire", From: from}
	}
	hold := Hold{ID: uuid.New().String(), Key: s.key, Amount: s.amount}
	if err := s.transition(EscrowPending{HoldID: hold.ID, Since: s.now()}, nil); err != nil {
		s.mu.Unlock()
		return err
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.doneErr = nil
	s.mu.Unlock()
	s.flush()

	go s.reserve(rctx, cancel, hold, done)
	return nil
}

func (s *Session) reserve(ctx context.Context, cancel context.CancelFunc, hold Hold, done chan struct{}) {
	defer close(done)
	defer cancel()

	err := s.reserver.Reserve(ctx, hold)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	s.mu.Lock()
	pending, ok := s.state.(EscrowPending)
	if s.closed || !ok || pending.HoldID != hold.ID {
		s.mu.Unlock()
		return
	}
	var cerr error
	if err == nil {
		cerr = s.transition(WorkInProgress{HoldID: hold.ID, LockedAt: s.now()}, nil)
	} else {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "reservation timed out"
		}
		cerr = s.transition(ReservationFailed{Reason: reason, FailedAt: s.now()}, errors.Join(ErrReservationFailed, err))
	}
	// The session stays escrow_pending when the outcome could not be stored;
	// Wait reports why.
	s.doneErr = cerr
	s.mu.Unlock()
	s.flush()
}

// ConfirmCompletion settles a deal in work_in_progress. Any other state is
// rejected with the state left unchanged.
func (s *Session) ConfirmCompletion() (Settlement, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Settlement{}, ErrSessionClosed
	}
	wip, ok := s.state.(WorkInProgress)
	if !ok {
		from := s.state.Status()
		s.mu.Unlock()
		return Settlement{}, InvalidTransitionError{Op: "confirm_completion", From: from}
	}
	settlement := Settle(s.amount, s.rate, s.now())
	if err := s.transition(Completed{HoldID: wip.HoldID, Settlement: settlement}, nil); err != nil {
		s.mu.Unlock()
		return Settlement{}, err
	}
	s.mu.Unlock()
	s.flush()
	return settlement, nil
}

// Dispute moves work_in_progress to disputed with a reason.
func (s *Session) Dispute(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrEmptyReason
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if _, ok := s.state.(WorkInProgress); !ok {
		from := s.state.Status()
		s.mu.Unlock()
		return InvalidTransitionError{Op: "dispute", From: from}
	}
	if err := s.transition(Disputed{Reason: reason, OpenedAt: s.now()}, nil); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	s.flush()
	return nil
}

// Close discards the session. An in-flight reservation is canceled and its
// outcome is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
}

// CloseIf closes the session only if its status is one of allowed, checked
// and closed under one lock so no transition can land in between. It returns
// the status the session was closed in.
func (s *Session) CloseIf(op string, allowed ...Status) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	from := s.state.Status()
	if !slices.Contains(allowed, from) {
		return from, InvalidTransitionError{Op: op, From: from}
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return from, nil
}

// Wait blocks until no reservation is in flight or ctx is done. It returns
// the error that kept the reservation outcome from being stored, if any.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.doneErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transition commits next and then applies it. It must be called with mu
// held.
func (s *Session) transition(next State, err error) error {
	t := Transition{
		SessionID: s.id,
		Key:       s.key,
		Amount:    s.amount,
		From:      s.state,
		To:        next,
		At:        s.now(),
		Err:       err,
	}
	if s.commit != nil {
		if cerr := s.commit(t); cerr != nil {
			return fmt.Errorf("commit %s: %w", next.Status(), cerr)
		}
	}
	s.queue = append(s.queue, t)
	s.state = next
	return nil
}

// flush delivers queued transitions in order with mu released, so observers
// may read the session. Only one goroutine delivers at a time.
func (s *Session) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		for _, o := range s.observers {
			o(t)
		}
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}
