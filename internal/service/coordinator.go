package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/court-reservation/internal/apperror"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

const tracerName = "github.com/Shivanand-hulikatti/court-reservation/internal/service"

// maxTries is the first attempt plus one retry.
const maxTries = 2

// State is the stage of a reservation attempt.
type State string

const (
	StateValidating State = "validating"
	StateCommitting State = "committing"
	StateConfirmed  State = "confirmed"
	StateConflict   State = "conflict"
	StateRejected   State = "rejected"
)

// Attempt is the outcome of one Reserve call.
type Attempt struct {
	State   State
	Booking *model.Booking
	Err     error
	// Tries counts commit attempts. It is zero when validation failed.
	Tries int
}

// ReservationCoordinator drives one booking request from validation to a
// terminal outcome, retrying once on transient storage failures.
type ReservationCoordinator struct {
	ledger  *BookingLedger
	backoff time.Duration
	tracer  trace.Tracer
	log     zerolog.Logger
	newID   func() string
}

// NewReservationCoordinator constructs a ReservationCoordinator.
func NewReservationCoordinator(ledger *BookingLedger, backoff time.Duration, log zerolog.Logger) *ReservationCoordinator {
	return &ReservationCoordinator{
		ledger:  ledger,
		backoff: backoff,
		tracer:  otel.Tracer(tracerName),
		log:     log,
		newID:   newBookingID,
	}
}

func newBookingID() string { return uuid.NewString() }

// Reserve validates req and commits it. The booking id is fixed before the
// first commit, so a retry after a lost acknowledgement can recognise its
// own row instead of reporting a conflict.
func (c *ReservationCoordinator) Reserve(ctx context.Context, userID string, req model.CreateBookingRequest) *Attempt {
	ctx, span := c.tracer.Start(ctx, "reservation.reserve", trace.WithAttributes(
		attribute.String("booking.user_id", userID),
		attribute.String("booking.court_id", req.CourtID),
		attribute.String("booking.slot_id", req.TimeSlotID),
	))
	defer span.End()

	a := c.run(ctx, userID, req)

	span.SetAttributes(
		attribute.String("reservation.state", string(a.State)),
		attribute.Int("reservation.tries", a.Tries),
	)
	if a.State == StateConfirmed {
		span.SetAttributes(attribute.String("booking.id", a.Booking.ID))
		span.SetStatus(codes.Ok, "")
	} else {
		span.RecordError(a.Err)
		span.SetStatus(codes.Error, apperror.CodeOf(a.Err))
	}

	c.log.Info().
		Str("user_id", userID).
		Str("slot_id", req.TimeSlotID).
		Str("state", string(a.State)).
		Int("tries", a.Tries).
		AnErr("error", a.Err).
		Msg("reservation attempt")
	return a
}

func (c *ReservationCoordinator) run(ctx context.Context, userID string, req model.CreateBookingRequest) *Attempt {
	a := &Attempt{State: StateValidating}

	var draft *model.Booking
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		draft, err = c.ledger.prepare(ctx, userID, req)
		return err
	})
	if err != nil {
		return a.finish(StateRejected, nil, err)
	}

	a.State = StateCommitting
	draft.ID = c.newID()

	for {
		a.Tries++
		err := c.ledger.commit(ctx, draft)
		switch {
		case err == nil:
			return a.finish(StateConfirmed, draft, nil)

		case errors.Is(err, apperror.ErrSlotAlreadyBooked):
			if a.Tries == 1 {
				return a.finish(StateConflict, nil, err)
			}
			// An earlier attempt may have committed before timing out.
			mine, verr := c.ledger.owns(ctx, draft)
			if verr != nil {
				return a.finish(StateRejected, nil, transient(verr))
			}
			if !mine {
				return a.finish(StateConflict, nil, err)
			}
			c.ledger.emit(ctx, model.EventBookingCreated, *draft, draft.UserID)
			return a.finish(StateConfirmed, draft, nil)

		case apperror.IsTransient(err):
			if a.Tries < maxTries && c.wait(ctx) == nil {
				continue
			}
			// Out of retries. Report success only if the row is provably ours.
			if mine, verr := c.ledger.owns(ctx, draft); verr == nil && mine {
				c.ledger.emit(ctx, model.EventBookingCreated, *draft, draft.UserID)
				return a.finish(StateConfirmed, draft, nil)
			}
			return a.finish(StateRejected, nil, err)

		default:
			return a.finish(StateRejected, nil, err)
		}
	}
}

// retry runs fn and repeats it once after the backoff when it fails with a
// transient error.
func (c *ReservationCoordinator) retry(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	for try := 1; try < maxTries && apperror.IsTransient(err); try++ {
		if werr := c.wait(ctx); werr != nil {
			return err
		}
		err = fn(ctx)
	}
	return err
}

func (c *ReservationCoordinator) wait(ctx context.Context) error {
	if c.backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Attempt) finish(s State, b *model.Booking, err error) *Attempt {
	a.State = s
	a.Booking = b
	a.Err = err
	return a
}

// transient classifies err as transient unless it already carries a class.
func transient(err error) error {
	if apperror.ClassOf(err) != apperror.ClassInternal {
		return err
	}
	return apperror.ErrTransient.Wrap(err)
}
