package escrow

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = Key{ClientID: "client-1", SpecialistID: "spec-1", TaskID: "task-1"}

// manualReserver lets a test decide when and how each reservation ends.
type manualReserver struct {
	results chan error
}

func newManualReserver() *manualReserver {
	return &manualReserver{results: make(chan error, 1)}
}

func (m *manualReserver) Reserve(ctx context.Context, _ Hold) error {
	select {
	case err := <-m.results:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type recorder struct {
	mu    sync.Mutex
	trans []Transition
}

func (r *recorder) observe(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trans = append(r.trans, t)
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.trans))
	for _, t := range r.trans {
		out = append(out, t.To.Status())
	}
	return out
}

func waitSettled(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestHireSettleConfirm(t *testing.T) {
	rec := &recorder{}
	s := NewSession(testKey, decimal.NewFromInt(1000),
		WithReserver(SimulatedReserver{Delay: 20 * time.Millisecond}),
		WithObserver(rec.observe),
	)
	require.Equal(t, StatusIdle, s.Status())

	require.NoError(t, s.Hire(context.Background()))
	assert.Equal(t, StatusEscrowPending, s.Status(), "pending immediately after hire")

	waitSettled(t, s)
	assert.Equal(t, StatusWorkInProgress, s.Status())

	settlement, err := s.ConfirmCompletion()
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s.Status())
	assert.True(t, settlement.Commission.Equal(decimal.NewFromInt(100)))
	assert.True(t, settlement.Payout.Equal(decimal.NewFromInt(900)))

	completed, ok := s.State().(Completed)
	require.True(t, ok)
	assert.False(t, completed.Settlement.SettledAt.IsZero())

	assert.Equal(t, []Status{StatusEscrowPending, StatusWorkInProgress, StatusCompleted}, rec.statuses())
}

func TestConfirmRejectedBeforeWork(t *testing.T) {
	res := newManualReserver()
	s := NewSession(testKey, decimal.NewFromInt(10), WithReserver(res))

	_, err := s.ConfirmCompletion()
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusIdle, s.Status())

	require.NoError(t, s.Hire(context.Background()))
	_, err = s.ConfirmCompletion()
	require.ErrorIs(t, err, ErrInvalidTransition)
	var ite InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusEscrowPending, ite.From)
	assert.Equal(t, StatusEscrowPending, s.Status())

	res.results <- nil
	waitSettled(t, s)
}

func TestHireOnlyFromIdle(t *testing.T) {
	res := newManualReserver()
	s := NewSession(testKey, decimal.NewFromInt(10), WithReserver(res))

	require.NoError(t, s.Hire(context.Background()))
	err := s.Hire(context.Background())
	require.ErrorIs(t, err, ErrInvalidTransition, "second hire while pending")
	assert.Equal(t, StatusEscrowPending, s.Status())

	res.results <- nil
	waitSettled(t, s)
	require.ErrorIs(t, s.Hire(context.Background()), ErrInvalidTransition)
	assert.Equal(t, StatusWorkInProgress, s.Status())
}

func TestReservationFailure(t *testing.T) {
	rec := &recorder{}
	res := newManualReserver()
	s := NewSession(testKey, decimal.NewFromInt(10), WithReserver(res), WithObserver(rec.observe))

	require.NoError(t, s.Hire(context.Background()))
	res.results <- errors.New("card declined")
	waitSettled(t, s)

	failed, ok := s.State().(ReservationFailed)
	require.True(t, ok)
	assert.Equal(t, "card declined", failed.Reason)

	rec.mu.Lock()
	last := rec.trans[len(rec.trans)-1]
	rec.mu.Unlock()
	assert.ErrorIs(t, last.Err, ErrReservationFailed)

	require.ErrorIs(t, s.Hire(context.Background()), ErrInvalidTransition)
	_, err := s.ConfirmCompletion()
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReservationTimeout(t *testing.T) {
	s := NewSession(testKey, decimal.NewFromInt(10),
		WithReserver(newManualReserver()),
		WithReservationTimeout(20*time.Millisecond),
	)
	require.NoError(t, s.Hire(context.Background()))
	waitSettled(t, s)

	failed, ok := s.State().(ReservationFailed)
	require.True(t, ok)
	assert.Equal(t, "reservation timed out", failed.Reason)
}

func TestHireOutlivesCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(testKey, decimal.NewFromInt(10), WithReserver(SimulatedReserver{Delay: 20 * time.Millisecond}))
	require.NoError(t, s.Hire(ctx))
	cancel()
	waitSettled(t, s)
	assert.Equal(t, StatusWorkInProgress, s.Status())
}

func TestCloseDropsInFlightReservation(t *testing.T) {
	rec := &recorder{}
	res := newManualReserver()
	s := NewSession(testKey, decimal.NewFromInt(10), WithReserver(res), WithObserver(rec.observe))

	require.NoError(t, s.Hire(context.Background()))
	s.Close()
	waitSettled(t, s)

	assert.Equal(t, StatusEscrowPending, s.Status())
	assert.Equal(t, []Status{StatusEscrowPending}, rec.statuses())
	require.ErrorIs(t, s.Hire(context.Background()), ErrSessionClosed)
}

func TestDispute(t *testing.T) {
	s := NewSession(testKey, decimal.NewFromInt(10), WithState(WorkInProgress{HoldID: "h"}))

	require.ErrorIs(t, s.Dispute("  "), ErrEmptyReason)
	require.NoError(t, s.Dispute("work not done"))

	d, ok := s.State().(Disputed)
	require.True(t, ok)
	assert.Equal(t, "work not done", d.Reason)

	_, err := s.ConfirmCompletion()
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, NewSession(testKey, decimal.Zero).Dispute("x"), ErrInvalidTransition)
}

func TestSettleRounding(t *testing.T) {
	st := Settle(decimal.RequireFromString("333.33"), DefaultCommissionRate, time.Unix(0, 0))
	assert.Equal(t, "33.33", st.Commission.StringFixed(2))
	assert.Equal(t, "300.00", st.Payout.StringFixed(2))
	assert.True(t, st.Commission.Add(st.Payout).Equal(st.Amount))
}

// TestStatusesNeverRevisited drives random operation sequences and checks the
// observed statuses only move forward.
func TestStatusesNeverRevisited(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		rec := &recorder{}
		res := newManualReserver()
		s := NewSession(testKey, decimal.NewFromInt(100), WithReserver(res), WithObserver(rec.observe))

		for step := 0; step < 8; step++ {
			before := s.Status()
			switch rng.Intn(5) {
			case 0:
				_ = s.Hire(context.Background())
			case 1:
				_, _ = s.ConfirmCompletion()
			case 2:
				_ = s.Dispute("late")
			case 3:
				if before == StatusEscrowPending {
					res.results <- nil
					waitSettled(t, s)
				}
			case 4:
				if before == StatusEscrowPending {
					res.results <- errors.New("declined")
					waitSettled(t, s)
				}
			}
			assert.GreaterOrEqual(t, s.Status().rank(), before.rank())
		}
		s.Close()
		waitSettled(t, s)

		seen := map[Status]bool{StatusIdle: true}
		prev := StatusIdle
		for _, st := range rec.statuses() {
			assert.False(t, seen[st], "status %s revisited", st)
			assert.Greater(t, st.rank(), prev.rank())
			seen[st] = true
			prev = st
		}
	}
}

func TestOperationTable(t *testing.T) {
	states := []State{
		Idle{},
		EscrowPending{HoldID: "h"},
		WorkInProgress{HoldID: "h"},
		Completed{},
		ReservationFailed{Reason: "x"},
		Disputed{Reason: "x"},
	}
	for _, st := range states {
		t.Run(string(st.Status()), func(t *testing.T) {
			s := NewSession(testKey, decimal.NewFromInt(1), WithState(st), WithReserver(newManualReserver()))
			defer s.Close()

			_, err := s.ConfirmCompletion()
			if st.Status() == StatusWorkInProgress {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, st.Status(), s.Status())

			err = s.Hire(context.Background())
			if st.Status() == StatusIdle {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, st.Status(), s.Status())
			}
		})
	}
}

func TestFailedCommitKeepsState(t *testing.T) {
	rec := &recorder{}
	var refuse error
	var mu sync.Mutex
	commit := func(tr Transition) error {
		mu.Lock()
		defer mu.Unlock()
		return refuse
	}
	setRefuse := func(err error) {
		mu.Lock()
		refuse = err
		mu.Unlock()
	}
	res := newManualReserver()
	s := NewSession(testKey, decimal.NewFromInt(1000), WithReserver(res), WithCommitter(commit), WithObserver(rec.observe))

	diskFull := errors.New("disk full")
	setRefuse(diskFull)
	err := s.Hire(context.Background())
	require.ErrorIs(t, err, diskFull)
	assert.Equal(t, StatusIdle, s.Status())
	require.NoError(t, s.Wait(context.Background()), "no reservation was started")

	setRefuse(nil)
	require.NoError(t, s.Hire(context.Background()))
	setRefuse(diskFull)
	res.results <- nil
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.ErrorIs(t, s.Wait(ctx), diskFull)
	assert.Equal(t, StatusEscrowPending, s.Status(), "an outcome that was not stored is not applied")
	assert.Equal(t, []Status{StatusEscrowPending}, rec.statuses())
}

func TestFailedCommitOnConfirmAndDispute(t *testing.T) {
	diskFull := errors.New("disk full")
	refuse := false
	s := NewSession(testKey, decimal.NewFromInt(1000),
		WithState(WorkInProgress{HoldID: "h1"}),
		WithCommitter(func(Transition) error {
			if refuse {
				return diskFull
			}
			return nil
		}),
	)
	refuse = true
	_, err := s.ConfirmCompletion()
	require.ErrorIs(t, err, diskFull)
	require.ErrorIs(t, s.Dispute("не выполнено"), diskFull)
	assert.Equal(t, StatusWorkInProgress, s.Status())

	refuse = false
	_, err = s.ConfirmCompletion()
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s.Status())
}

func TestCloseIfChecksStateUnderLock(t *testing.T) {
	res := newManualReserver()
	rec := &recorder{}
	s := NewSession(testKey, decimal.NewFromInt(1000), WithReserver(res), WithObserver(rec.observe))
	require.NoError(t, s.Hire(context.Background()))

	from, err := s.CloseIf("discard", StatusIdle, StatusEscrowPending)
	require.NoError(t, err)
	assert.Equal(t, StatusEscrowPending, from)
	res.results <- nil
	waitSettled(t, s)
	assert.Equal(t, StatusEscrowPending, s.Status(), "reservation after close never lands")
	assert.Equal(t, []Status{StatusEscrowPending}, rec.statuses())

	_, err = s.CloseIf("discard", StatusIdle)
	require.ErrorIs(t, err, ErrSessionClosed)

	wip := NewSession(testKey, decimal.NewFromInt(1000), WithState(WorkInProgress{HoldID: "h1"}))
	from, err = wip.CloseIf("discard", StatusIdle, StatusEscrowPending)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusWorkInProgress, from)
	_, err = wip.ConfirmCompletion()
	require.NoError(t, err, "a refused close leaves the session usable")
}

func TestCloseIfRacesReservation(t *testing.T) {
	for i := 0; i < 50; i++ {
		res := newManualReserver()
		s := NewSession(testKey, decimal.NewFromInt(1000), WithReserver(res))
		require.NoError(t, s.Hire(context.Background()))
		res.results <- nil
		from, err := s.CloseIf("discard", StatusIdle, StatusEscrowPending)
		waitSettled(t, s)
		if err == nil {
			assert.Equal(t, StatusEscrowPending, from)
			assert.Equal(t, StatusEscrowPending, s.Status())
		} else {
			require.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, StatusWorkInProgress, s.Status())
		}
	}
}
