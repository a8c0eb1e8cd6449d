package escrow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid deal status transition")
	ErrReservationFailed = errors.New("funds reservation failed")
	ErrEmptyReason       = errors.New("dispute reason is required")
	ErrSessionClosed     = errors.New("deal session closed")
)

// InvalidTransitionError names the rejected operation and the state it was
// attempted from. It matches ErrInvalidTransition with errors.Is.
type InvalidTransitionError struct {
	Op   string
	From Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid deal status transition: %s not allowed from %s", e.Op, e.From)
}

func (e InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
