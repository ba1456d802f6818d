package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// AsyncDispatcher queues events on a bounded channel drained by a fixed pool
// of workers. When the queue is full the event is dropped and counted.
type AsyncDispatcher struct {
	sink    Sink
	queue   chan Event
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncDispatcher(sink Sink, opts Options, log *zap.Logger, m *metrics.Metrics) *AsyncDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &AsyncDispatcher{
		sink:    sink,
		queue:   make(chan Event, opts.QueueSize),
		timeout: opts.Timeout,
		log:     log.Named("notify"),
		metrics: m,
		now:     time.Now,
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

func (d *AsyncDispatcher) Dispatch(recipientID uuid.UUID, kind EventKind, ref string) {
	ev := Event{
		ID:             uuid.New(),
		RecipientID:    recipientID,
		Kind:           kind,
		AppointmentRef: ref,
		Message:        kind.Message(),
		OccurredAt:     d.now(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "dispatcher closed")
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *AsyncDispatcher) drop(ev Event, reason string) {
	d.metrics.ObserveDrop()
	d.log.Warn("notification dropped",
		zap.String("reason", reason),
		zap.String("kind", string(ev.Kind)),
		zap.String("recipient_id", ev.RecipientID.String()),
		zap.String("ref", ev.AppointmentRef),
	)
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()

	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *AsyncDispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("event_id", ev.ID.String()),
		zap.String("kind", string(ev.Kind)),
		zap.String("recipient_id", ev.RecipientID.String()),
		zap.String("ref", ev.AppointmentRef),
	}

	if err := d.sink.Send(ctx, ev); err != nil {
		d.metrics.ObserveNotification(string(ev.Kind), "failed")
		d.log.Error("notification failed", append(fields, zap.Error(err))...)
		return
	}

	d.metrics.ObserveNotification(string(ev.Kind), "sent")
	d.log.Debug("notification sent", fields...)
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
