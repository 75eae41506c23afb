package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

// Order statuses. Pending is initial; Paid, Failed and Expired are terminal.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func (s Status) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further automatic transition happens from s.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusExpired
}

// IsFailure reports whether s is a terminal failure that allows a retry.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusExpired
}

// CanTransitionTo reports whether s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next.IsTerminal()
	default:
		return false
	}
}
