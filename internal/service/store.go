// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the storage layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/court-reservation/internal/apperror"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
	"github.com/Shivanand-hulikatti/court-reservation/internal/repository"
)

// VenueDirectory resolves venues and courts.
type VenueDirectory interface {
	GetVenue(ctx context.Context, id string) (*model.Venue, error)
	GetCourt(ctx context.Context, id string) (*model.Court, error)
}

// SlotStore persists time slots.
type SlotStore interface {
	InsertSlots(ctx context.Context, slots []model.TimeSlot) (int, error)
	GetSlot(ctx context.Context, id string) (*model.TimeSlot, error)
	ListAvailableSlots(ctx context.Context, venueID string, date model.Date) ([]model.SlotView, error)
}

// BookingStore persists bookings. InsertBooking must reject a second active
// booking for the same slot with repository.ErrSlotAlreadyBooked, and
// TransitionBooking must only apply when the current status is in from.
type BookingStore interface {
	InsertBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	CountActiveBookings(ctx context.Context, userID string) (int, error)
	TransitionBooking(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus, at time.Time) (*model.Booking, error)
	CompleteEndedBookings(ctx context.Context, now time.Time, loc *time.Location) ([]model.Booking, error)
	ExpirePendingBookings(ctx context.Context, cutoff, at time.Time) ([]model.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]model.BookingDetail, error)
	ListVenueBookings(ctx context.Context, venueID string) ([]model.BookingDetail, error)
}

// EventSink receives booking transitions. Emit must not block on delivery.
type EventSink interface {
	Emit(ctx context.Context, ev model.BookingEvent)
}

// storageErr maps repository sentinels onto application errors.
// notFound is the error reported for repository.ErrNotFound.
func storageErr(op string, err error, notFound *apperror.Error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound) && notFound != nil:
		return notFound.Wrap(err)
	case errors.Is(err, repository.ErrSlotAlreadyBooked):
		return apperror.ErrSlotAlreadyBooked.Wrap(err)
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return apperror.ErrTransient.Wrap(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
