package booking

import (
	"errors"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

var (
	// ErrValidation covers malformed requests: bad service kind, start not
	// before end, a date in the past. Never worth retrying unchanged.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means the slot is held by another active appointment.
	ErrConflict = errors.New("slot conflict")
	// ErrPolicyViolation means the cancellation or reschedule window has closed.
	ErrPolicyViolation = errors.New("policy violation")
	ErrNotFound        = errors.New("not found")
	// ErrInvalidTransition is returned for status changes the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSlotUnavailableQueued is the soft outcome of a booking that could not
	// be placed but was recorded on the waiting list. See QueuedError.
	ErrSlotUnavailableQueued = errors.New("slot unavailable, request added to waiting list")
)

// QueuedError is returned by RequestBooking when the slot was unavailable and
// a waiting list entry was created instead. It matches both
// ErrSlotUnavailableQueued and ErrConflict, so callers that only know about
// conflicts still see one.
type QueuedError struct {
	Entry *waitlist.Entry
}

func (e *QueuedError) Error() string {
	return fmt.Sprintf("%s (entry %s)", ErrSlotUnavailableQueued, e.Entry.ID)
}

func (e *QueuedError) Is(target error) bool {
	return target == ErrSlotUnavailableQueued || target == ErrConflict
}

// errUnavailable signals out of the locked section that the slot was taken.
var errUnavailable = errors.New("slot unavailable")
