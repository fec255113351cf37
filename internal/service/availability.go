package service

import (
	"context"

	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// AvailabilityIndex answers which slots of a venue are free on a date.
// Every call reads storage; nothing is cached.
type AvailabilityIndex struct {
	slots SlotStore
	rules Rules
}

// NewAvailabilityIndex constructs an AvailabilityIndex.
func NewAvailabilityIndex(slots SlotStore, rules Rules) *AvailabilityIndex {
	return &AvailabilityIndex{slots: slots, rules: rules}
}

// GetAvailableSlots lists the open, unbooked slots of the venue's active
// courts on date, ordered by start time, court name and slot id. A non-empty
// courtID narrows the listing to one court. An unknown venue yields an empty
// list.
func (a *AvailabilityIndex) GetAvailableSlots(ctx context.Context, venueID string, date model.Date, courtID string) ([]model.SlotView, error) {
	ctx, cancel := a.rules.bounded(ctx)
	defer cancel()

	views, err := a.slots.ListAvailableSlots(ctx, venueID, date)
	if err != nil {
		return nil, storageErr("list available slots", err, nil)
	}

	out := make([]model.SlotView, 0, len(views))
	for _, v := range views {
		if courtID != "" && v.CourtID != courtID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
