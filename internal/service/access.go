package service

import (
	"context"

	"github.com/Shivanand-hulikatti/court-reservation/internal/apperror"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// access answers ownership questions against the venue directory.
type access struct {
	venues VenueDirectory
	rules  Rules
}

func (a access) court(ctx context.Context, id string) (*model.Court, error) {
	ctx, cancel := a.rules.bounded(ctx)
	defer cancel()

	court, err := a.venues.GetCourt(ctx, id)
	if err != nil {
		return nil, storageErr("get court", err, apperror.ErrCourtNotFound)
	}
	return court, nil
}

func (a access) venue(ctx context.Context, id string) (*model.Venue, error) {
	ctx, cancel := a.rules.bounded(ctx)
	defer cancel()

	venue, err := a.venues.GetVenue(ctx, id)
	if err != nil {
		return nil, storageErr("get venue", err, apperror.ErrVenueNotFound)
	}
	return venue, nil
}

// requireVenueOwner passes for admins and for the owner of venueID.
func (a access) requireVenueOwner(ctx context.Context, actor model.Identity, venueID string) error {
	if actor.IsAdmin() {
		return nil
	}
	venue, err := a.venue(ctx, venueID)
	if err != nil {
		return err
	}
	if actor.UserID == "" || venue.OwnerID != actor.UserID {
		return apperror.ErrUnauthorized
	}
	return nil
}

// requireBookingAccess passes for admins, the booking's user and the owner
// of the venue the booked court belongs to.
func (a access) requireBookingAccess(ctx context.Context, actor model.Identity, b *model.Booking) error {
	if actor.IsAdmin() || (actor.UserID != "" && actor.UserID == b.UserID) {
		return nil
	}
	return a.requireCourtOwner(ctx, actor, b.CourtID)
}

func (a access) requireCourtOwner(ctx context.Context, actor model.Identity, courtID string) error {
	if actor.IsAdmin() {
		return nil
	}
	court, err := a.court(ctx, courtID)
	if err != nil {
		return err
	}
	return a.requireVenueOwner(ctx, actor, court.VenueID)
}
