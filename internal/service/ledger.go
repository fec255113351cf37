package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/court-reservation/internal/apperror"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
	"github.com/Shivanand-hulikatti/court-reservation/internal/repository"
)

// BookingLedger owns booking records and their status transitions.
// At most one pending or confirmed booking per slot is enforced by the
// BookingStore, never by a read in this package.
type BookingLedger struct {
	access
	slots    SlotStore
	bookings BookingStore
	events   EventSink
	log      zerolog.Logger
}

// NewBookingLedger constructs a BookingLedger. A nil events sink drops
// every event.
func NewBookingLedger(
	venues VenueDirectory,
	slots SlotStore,
	bookings BookingStore,
	rules Rules,
	events EventSink,
	log zerolog.Logger,
) *BookingLedger {
	return &BookingLedger{
		access:   access{venues: venues, rules: rules},
		slots:    slots,
		bookings: bookings,
		events:   events,
		log:      log,
	}
}

// CreateBooking validates and commits a booking in one pass without
// retries. The coordinator is the retrying entry point.
func (l *BookingLedger) CreateBooking(ctx context.Context, userID string, req model.CreateBookingRequest) (*model.Booking, error) {
	draft, err := l.prepare(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	draft.ID = newBookingID()
	if err := l.commit(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// prepare runs every precondition, first failure wins, and returns the
// booking to insert without an id.
func (l *BookingLedger) prepare(ctx context.Context, userID string, req model.CreateBookingRequest) (*model.Booking, error) {
	if userID == "" {
		return nil, apperror.ErrUnauthenticated
	}

	slot, err := l.slot(ctx, req.TimeSlotID)
	if err != nil {
		return nil, err
	}
	if slot.CourtID != req.CourtID {
		return nil, apperror.ErrSlotNotFound
	}
	court, err := l.court(ctx, slot.CourtID)
	if err != nil {
		if errors.Is(err, apperror.ErrCourtNotFound) {
			return nil, apperror.ErrSlotNotFound.Wrap(err)
		}
		return nil, err
	}
	if !court.IsActive {
		return nil, apperror.ErrCourtInactive
	}
	venue, err := l.venue(ctx, court.VenueID)
	if err != nil {
		return nil, err
	}
	if !venue.IsActive {
		return nil, apperror.ErrCourtInactive
	}
	if !slot.IsAvailable {
		return nil, apperror.ErrSlotUnavailable
	}

	now := l.rules.now()
	loc := l.rules.loc()
	if slot.StartsAt(loc).Sub(now) < l.rules.MinLead {
		return nil, tooLate(l.rules.MinLead)
	}
	if slot.Date.DaysSince(model.DateOf(now.In(loc))) > l.rules.MaxDaysAhead {
		return nil, apperror.ErrTooFar.WithMessage("Cannot book more than %d days in advance", l.rules.MaxDaysAhead)
	}

	active, err := l.countActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Advisory: two concurrent attempts by one user can both pass this
	// read. Slot uniqueness does not depend on it.
	if active >= l.rules.MaxActive {
		return nil, apperror.ErrBookingLimit
	}

	status := model.StatusPending
	if l.rules.AutoConfirm {
		status = model.StatusConfirmed
	}
	return &model.Booking{
		UserID:          userID,
		CourtID:         slot.CourtID,
		TimeSlotID:      slot.ID,
		Status:          status,
		TotalPrice:      slot.Price,
		SpecialRequests: strings.TrimSpace(req.SpecialRequests),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// commit inserts b. The unique index decides the race; a loser gets
// apperror.ErrSlotAlreadyBooked.
func (l *BookingLedger) commit(ctx context.Context, b *model.Booking) error {
	sctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	if err := l.bookings.InsertBooking(sctx, b); err != nil {
		return storageErr("insert booking", err, nil)
	}
	l.emit(ctx, model.EventBookingCreated, *b, b.UserID)
	return nil
}

// owns reports whether b is already stored under its own id and still
// holds its slot. It recognises a commit whose acknowledgement was lost.
func (l *BookingLedger) owns(ctx context.Context, b *model.Booking) (bool, error) {
	stored, err := l.getBooking(ctx, b.ID)
	if errors.Is(err, apperror.ErrBookingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored.TimeSlotID == b.TimeSlotID && stored.Status.IsActive(), nil
}

// CancelBooking cancels an active booking at least CancelWindow before its
// start. Cancelling an already-cancelled booking returns it unchanged.
func (l *BookingLedger) CancelBooking(ctx context.Context, id string, actor model.Identity) (*model.Booking, error) {
	b, err := l.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.requireBookingAccess(ctx, actor, b); err != nil {
		return nil, err
	}

	switch b.Status {
	case model.StatusCancelled:
		return b, nil
	case model.StatusCompleted:
		return nil, apperror.ErrCancellationWindow
	}

	slot, err := l.slot(ctx, b.TimeSlotID)
	if err != nil {
		return nil, err
	}
	now := l.rules.now()
	if slot.StartsAt(l.rules.loc()).Sub(now) <= l.rules.CancelWindow {
		return nil, apperror.ErrCancellationWindow
	}

	updated, err := l.transition(ctx, id, model.ActiveStatuses, model.StatusCancelled, now)
	if errors.Is(err, repository.ErrStatusMismatch) {
		// Lost the row to a concurrent transition; report what won.
		current, rerr := l.getBooking(ctx, id)
		if rerr != nil {
			return nil, rerr
		}
		if current.Status == model.StatusCancelled {
			return current, nil
		}
		return nil, apperror.ErrCancellationWindow
	}
	if err != nil {
		return nil, err
	}

	l.emit(ctx, model.EventBookingCancelled, *updated, actor.UserID)
	return updated, nil
}

// ConfirmBooking moves a pending booking to confirmed. Only the venue owner
// or an admin may confirm.
func (l *BookingLedger) ConfirmBooking(ctx context.Context, id string, actor model.Identity) (*model.Booking, error) {
	b, err := l.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.requireCourtOwner(ctx, actor, b.CourtID); err != nil {
		return nil, err
	}

	switch b.Status {
	case model.StatusConfirmed:
		return b, nil
	case model.StatusCancelled, model.StatusCompleted:
		return nil, apperror.ErrInvalidTransition
	}

	updated, err := l.transition(ctx, id, []model.BookingStatus{model.StatusPending}, model.StatusConfirmed, l.rules.now())
	if errors.Is(err, repository.ErrStatusMismatch) {
		current, rerr := l.getBooking(ctx, id)
		if rerr != nil {
			return nil, rerr
		}
		if current.Status == model.StatusConfirmed {
			return current, nil
		}
		return nil, apperror.ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	l.emit(ctx, model.EventBookingConfirmed, *updated, actor.UserID)
	return updated, nil
}

// CompleteExpiredBookings marks active bookings whose slot has ended as
// completed and returns how many changed.
func (l *BookingLedger) CompleteExpiredBookings(ctx context.Context) (int, error) {
	sctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	done, err := l.bookings.CompleteEndedBookings(sctx, l.rules.now(), l.rules.loc())
	if err != nil {
		return 0, storageErr("complete ended bookings", err, nil)
	}
	for _, b := range done {
		l.emit(ctx, model.EventBookingCompleted, b, "")
	}
	return len(done), nil
}

// ExpireStalePending cancels pending bookings older than PendingTTL, which
// frees their slots. A zero TTL disables expiry.
func (l *BookingLedger) ExpireStalePending(ctx context.Context) (int, error) {
	if l.rules.PendingTTL <= 0 {
		return 0, nil
	}

	sctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	now := l.rules.now()
	expired, err := l.bookings.ExpirePendingBookings(sctx, now.Add(-l.rules.PendingTTL), now)
	if err != nil {
		return 0, storageErr("expire pending bookings", err, nil)
	}
	for _, b := range expired {
		l.emit(ctx, model.EventBookingExpired, b, "")
	}
	return len(expired), nil
}

// SweepExpired runs completion, then pending expiry.
func (l *BookingLedger) SweepExpired(ctx context.Context) (model.SweepResult, error) {
	var res model.SweepResult

	completed, err := l.CompleteExpiredBookings(ctx)
	if err != nil {
		return res, err
	}
	res.CompletedCount = completed

	expired, err := l.ExpireStalePending(ctx)
	if err != nil {
		return res, err
	}
	res.ExpiredPendingCount = expired

	if completed > 0 || expired > 0 {
		l.log.Info().Int("completed", completed).Int("expired_pending", expired).Msg("bookings swept")
	}
	return res, nil
}

// GetBooking returns a booking visible to actor.
func (l *BookingLedger) GetBooking(ctx context.Context, actor model.Identity, id string) (*model.Booking, error) {
	b, err := l.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.requireBookingAccess(ctx, actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListUserBookings returns a user's bookings, newest slot first.
func (l *BookingLedger) ListUserBookings(ctx context.Context, userID string) ([]model.BookingDetail, error) {
	if userID == "" {
		return nil, apperror.ErrUnauthenticated
	}

	ctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	out, err := l.bookings.ListUserBookings(ctx, userID)
	if err != nil {
		return nil, storageErr("list user bookings", err, nil)
	}
	return nonNil(out), nil
}

// ListVenueBookings returns every booking of a venue for its owner or an
// admin, newest slot first.
func (l *BookingLedger) ListVenueBookings(ctx context.Context, actor model.Identity, venueID string) ([]model.BookingDetail, error) {
	if _, err := l.venue(ctx, venueID); err != nil {
		return nil, err
	}
	if err := l.requireVenueOwner(ctx, actor, venueID); err != nil {
		return nil, err
	}

	ctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	out, err := l.bookings.ListVenueBookings(ctx, venueID)
	if err != nil {
		return nil, storageErr("list venue bookings", err, nil)
	}
	return nonNil(out), nil
}

// ─── Storage helpers ──────────────────────────────────────────────────────────

func (l *BookingLedger) slot(ctx context.Context, id string) (*model.TimeSlot, error) {
	ctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	slot, err := l.slots.GetSlot(ctx, id)
	if err != nil {
		return nil, storageErr("get slot", err, apperror.ErrSlotNotFound)
	}
	return slot, nil
}

func (l *BookingLedger) getBooking(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	b, err := l.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, storageErr("get booking", err, apperror.ErrBookingNotFound)
	}
	return b, nil
}

func (l *BookingLedger) countActive(ctx context.Context, userID string) (int, error) {
	ctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	n, err := l.bookings.CountActiveBookings(ctx, userID)
	if err != nil {
		return 0, storageErr("count active bookings", err, nil)
	}
	return n, nil
}

// transition passes repository.ErrStatusMismatch through untranslated so
// callers can re-read and report the winning state.
func (l *BookingLedger) transition(
	ctx context.Context,
	id string,
	from []model.BookingStatus,
	to model.BookingStatus,
	at time.Time,
) (*model.Booking, error) {
	ctx, cancel := l.rules.bounded(ctx)
	defer cancel()

	b, err := l.bookings.TransitionBooking(ctx, id, from, to, at)
	if errors.Is(err, repository.ErrStatusMismatch) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr("transition booking", err, apperror.ErrBookingNotFound)
	}
	return b, nil
}

func (l *BookingLedger) emit(ctx context.Context, typ string, b model.Booking, actorID string) {
	l.log.Debug().Str("event", typ).Str("booking_id", b.ID).Str("status", string(b.Status)).Msg("booking transition")
	if l.events == nil {
		return
	}
	l.events.Emit(ctx, model.BookingEvent{
		Type:       typ,
		Booking:    b,
		ActorID:    actorID,
		OccurredAt: l.rules.now().UTC(),
	})
}

func tooLate(lead time.Duration) error {
	hours := int(lead / time.Hour)
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	return apperror.ErrTooLate.WithMessage("Booking must be made at least %d %s in advance", hours, unit)
}

func nonNil(in []model.BookingDetail) []model.BookingDetail {
	if in == nil {
		return []model.BookingDetail{}
	}
	return in
}
