package availability

import (
	"errors"
	"fmt"

	"zenbook/internal/schedule"
)

// Sentinel errors of the booking taxonomy. Handlers map these onto HTTP
// status codes. ErrConcurrentConflict marks a booking that lost the store's
// transactional re-check to a concurrent insert; it is the only error worth
// a client retry.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidStaff        = errors.New("invalid staff member")
	ErrOutsideWorkingHours = errors.New("outside working hours")
	ErrSlotConflict        = errors.New("slot conflict")
	ErrConcurrentConflict  = errors.New("concurrent booking conflict")
)

// ConflictError is a slot conflict carrying the blocking interval so the
// caller can pick a different slot without re-querying.
type ConflictError struct {
	StaffID  string
	Date     string
	Blocking schedule.Interval
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflict: staff %s already blocked %s on %s", e.StaffID, e.Blocking, e.Date)
}

// Is makes ConflictError match errors.Is(err, ErrSlotConflict).
func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
