package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

type recordingSink struct {
	mu      sync.Mutex
	events  []Event
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *recordingSink) Send(ctx context.Context, ev Event) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestAsyncDispatcher_Delivers(t *testing.T) {
	sink := &recordingSink{}
	m := metrics.New("test", prometheus.NewRegistry())
	d := NewAsyncDispatcher(sink, Options{Workers: 2, QueueSize: 8}, zap.NewNop(), m)

	patient := uuid.New()
	d.Dispatch(patient, KindBooking, "APT-1")
	d.Dispatch(patient, KindCancellation, "APT-1")
	d.Close()

	events := sink.Events()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, patient, ev.RecipientID)
		assert.Equal(t, "APT-1", ev.AppointmentRef)
		assert.Equal(t, ev.Kind.Message(), ev.Message)
		assert.NotEqual(t, uuid.Nil, ev.ID)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("booking", "sent")))
}

func TestAsyncDispatcher_FailuresAreSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("smtp down")}
	m := metrics.New("test", prometheus.NewRegistry())
	d := NewAsyncDispatcher(sink, Options{Workers: 1, QueueSize: 4}, nil, m)

	assert.NotPanics(t, func() { d.Dispatch(uuid.New(), KindReminder, "APT-2") })
	d.Close()

	assert.Len(t, sink.Events(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("reminder", "failed")))
}

func TestAsyncDispatcher_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{started: make(chan struct{}, 4), release: make(chan struct{})}
	m := metrics.New("test", prometheus.NewRegistry())
	d := NewAsyncDispatcher(sink, Options{Workers: 1, QueueSize: 1}, nil, m)

	d.Dispatch(uuid.New(), KindBooking, "first")
	select {
	case <-sink.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not pick up the first event")
	}

	// worker is busy: one event fits the queue, the next is dropped
	done := make(chan struct{})
	go func() {
		d.Dispatch(uuid.New(), KindBooking, "second")
		d.Dispatch(uuid.New(), KindBooking, "third")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDrop))

	close(sink.release)
	d.Close()

	refs := []string{}
	for _, ev := range sink.Events() {
		refs = append(refs, ev.AppointmentRef)
	}
	assert.Equal(t, []string{"first", "second"}, refs)
}

func TestAsyncDispatcher_DispatchAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewAsyncDispatcher(sink, Options{}, nil, nil)
	d.Close()
	d.Close()

	assert.NotPanics(t, func() { d.Dispatch(uuid.New(), KindBooking, "late") })
	assert.Empty(t, sink.Events())
}

func TestEventKind_Message(t *testing.T) {
	assert.Equal(t, "Your appointment has been booked.", KindBooking.Message())
	assert.Equal(t, "custom", EventKind("custom").Message())
}
