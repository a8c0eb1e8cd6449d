package escrow

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusIdle              Status = "idle"
	StatusEscrowPending     Status = "escrow_pending"
	StatusWorkInProgress    Status = "work_in_progress"
	StatusCompleted         Status = "completed"
	StatusReservationFailed Status = "reservation_failed"
	StatusDisputed          Status = "disputed"
)

// Terminal reports whether no operation can leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusReservationFailed, StatusDisputed:
		return true
	}
	return false
}

// rank orders statuses along the forward path. Failure states share the
// rank after their source so no sequence can move backwards.
func (s Status) rank() int {
	switch s {
	case StatusIdle:
		return 0
	case StatusEscrowPending:
		return 1
	case StatusWorkInProgress, StatusReservationFailed:
		return 2
	case StatusCompleted, StatusDisputed:
		return 3
	}
	return -1
}

// ParseStatus maps a stored status string back to a Status.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.rank() >= 0
}

// State is a tagged variant; each concrete state carries only its own data.
type State interface {
	Status() Status
	isState()
}

type Idle struct{}

type EscrowPending struct {
	HoldID string
	Since  time.Time
}

type WorkInProgress struct {
	HoldID   string
	LockedAt time.Time
}

type Completed struct {
	HoldID     string
	Settlement Settlement
}

type ReservationFailed struct {
	Reason   string
	FailedAt time.Time
}

type Disputed struct {
	Reason   string
	OpenedAt time.Time
}

func (Idle) Status() Status              { return StatusIdle }
func (EscrowPending) Status() Status     { return StatusEscrowPending }
func (WorkInProgress) Status() Status    { return StatusWorkInProgress }
func (Completed) Status() Status         { return StatusCompleted }
func (ReservationFailed) Status() Status { return StatusReservationFailed }
func (Disputed) Status() Status          { return StatusDisputed }

func (Idle) isState()              {}
func (EscrowPending) isState()     {}
func (WorkInProgress) isState()    {}
func (Completed) isState()         {}
func (ReservationFailed) isState() {}
func (Disputed) isState()          {}

// Settlement splits the held amount between platform and specialist.
type Settlement struct {
	Amount     decimal.Decimal
	Commission decimal.Decimal
	Payout     decimal.Decimal
	SettledAt  time.Time
}

// Settle applies the commission rate, rounding the commission to cents.
func Settle(amount, rate decimal.Decimal, at time.Time) Settlement {
	commission := amount.Mul(rate).Round(2)
	return Settlement{
		Amount:     amount,
		Commission: commission,
		Payout:     amount.Sub(commission),
		SettledAt:  at,
	}
}
