package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	KindBooking      EventKind = "booking"
	KindCancellation EventKind = "cancellation"
	KindReschedule   EventKind = "reschedule"
	KindReminder     EventKind = "reminder"
	KindSlotOpened   EventKind = "slot_opened"
)

var messages = map[EventKind]string{
	KindBooking:      "Your appointment has been booked.",
	KindCancellation: "Your appointment has been canceled.",
	KindReschedule:   "Your appointment has been rescheduled.",
	KindReminder:     "Reminder: you have an upcoming appointment.",
	KindSlotOpened:   "A slot you were waiting for has opened up.",
}

// Message is the default text delivered for kind.
func (k EventKind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return string(k)
}

// Event is what sinks deliver. AppointmentRef is the booking code, or the
// waiting list entry id for KindSlotOpened.
type Event struct {
	ID             uuid.UUID `json:"id"`
	RecipientID    uuid.UUID `json:"recipient_id"`
	Kind           EventKind `json:"kind"`
	AppointmentRef string    `json:"appointment_ref"`
	Message        string    `json:"message"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Sink delivers a single event over some channel.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// Dispatcher is the fire-and-forget entry point used by the scheduling
// services. It never blocks on delivery and never reports delivery failures.
type Dispatcher interface {
	Dispatch(recipientID uuid.UUID, kind EventKind, ref string)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Dispatch(uuid.UUID, EventKind, string) {}
