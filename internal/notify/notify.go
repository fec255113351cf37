// Package notify fans booking events out to delivery sinks. Delivery is
// fire-and-forget: failures are logged and never reach the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// Sink delivers one event.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev model.BookingEvent) error
}

// Dispatcher queues events and delivers them from a single worker.
type Dispatcher struct {
	sinks   []Sink
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan model.BookingEvent
	done   chan struct{}
}

// NewDispatcher starts a dispatcher holding up to buffer pending events.
func NewDispatcher(log zerolog.Logger, buffer int, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		sinks:   sinks,
		log:     log,
		timeout: 5 * time.Second,
		queue:   make(chan model.BookingEvent, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit queues ev without blocking. A full queue drops the event.
func (d *Dispatcher) Emit(_ context.Context, ev model.BookingEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.log.Warn().Str("event", ev.Type).Str("booking_id", ev.Booking.ID).Msg("notification queue full, event dropped")
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, ev)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, ev model.BookingEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := s.Publish(ctx, ev); err != nil {
		d.log.Error().Err(err).
			Str("sink", s.Name()).
			Str("event", ev.Type).
			Str("booking_id", ev.Booking.ID).
			Msg("notification delivery failed")
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink returns a LogSink writing to log.
func NewLogSink(log zerolog.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, ev model.BookingEvent) error {
	s.log.Info().
		Str("event", ev.Type).
		Str("booking_id", ev.Booking.ID).
		Str("user_id", ev.Booking.UserID).
		Str("slot_id", ev.Booking.TimeSlotID).
		Str("status", string(ev.Booking.Status)).
		Str("actor_id", ev.ActorID).
		Time("occurred_at", ev.OccurredAt).
		Msg("booking event")
	return nil
}
