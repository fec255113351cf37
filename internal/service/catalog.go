package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/court-reservation/internal/apperror"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// Slot generation defaults.
const (
	DefaultIntervalMinutes = 60
	maxIntervalMinutes     = 24 * 60
)

var (
	DefaultDayStart = model.NewTimeOfDay(6, 0)
	DefaultDayEnd   = model.NewTimeOfDay(22, 0)
)

// SlotCatalog generates and stores the bookable slots of a court.
type SlotCatalog struct {
	access
	slots SlotStore
	log   zerolog.Logger
}

// NewSlotCatalog constructs a SlotCatalog with its dependencies.
func NewSlotCatalog(venues VenueDirectory, slots SlotStore, rules Rules, log zerolog.Logger) *SlotCatalog {
	return &SlotCatalog{
		access: access{venues: venues, rules: rules},
		slots:  slots,
		log:    log,
	}
}

// slotPlan is a validated generation request.
type slotPlan struct {
	start, end       model.Date
	dayStart, dayEnd model.TimeOfDay
	interval         time.Duration
	price            float64
}

func planSlots(req model.GenerateSlotsRequest) (slotPlan, error) {
	p := slotPlan{
		start:    req.StartDate,
		end:      req.EndDate,
		dayStart: DefaultDayStart,
		dayEnd:   DefaultDayEnd,
		interval: DefaultIntervalMinutes * time.Minute,
		price:    req.BasePrice,
	}
	if req.DayStart != nil {
		p.dayStart = *req.DayStart
	}
	if req.DayEnd != nil {
		p.dayEnd = *req.DayEnd
	}
	if req.IntervalMinutes != nil {
		// Out-of-range values stay zero and fail the interval check below.
		p.interval = 0
		if m := *req.IntervalMinutes; m > 0 && m <= maxIntervalMinutes {
			p.interval = time.Duration(m) * time.Minute
		}
	}

	if p.start.IsZero() || p.end.IsZero() {
		return slotPlan{}, apperror.ErrInvalidInput.WithMessage("start_date and end_date are required")
	}
	if p.start.After(p.end) || p.dayStart >= p.dayEnd {
		return slotPlan{}, apperror.ErrInvalidDateRange
	}
	if p.dayStart < 0 || p.dayEnd > model.MaxTimeOfDay {
		return slotPlan{}, apperror.ErrInvalidInput.WithMessage("day window must lie within 00:00 and 24:00")
	}
	window := p.dayEnd.Duration() - p.dayStart.Duration()
	if p.interval <= 0 || window%p.interval != 0 {
		return slotPlan{}, apperror.ErrInvalidInterval
	}
	if p.price < 0 {
		return slotPlan{}, apperror.ErrInvalidInput.WithMessage("base_price must not be negative")
	}
	return p, nil
}

// slotsFor returns every slot of the plan on one date.
func (p slotPlan) slotsFor(courtID string, date model.Date, now time.Time) []model.TimeSlot {
	var out []model.TimeSlot
	for t := p.dayStart; t < p.dayEnd; t = t.Add(p.interval) {
		out = append(out, model.TimeSlot{
			ID:          uuid.NewString(),
			CourtID:     courtID,
			Date:        date,
			StartTime:   t,
			EndTime:     t.Add(p.interval),
			Price:       p.price,
			IsAvailable: true,
			CreatedAt:   now,
		})
	}
	return out
}

// GenerateSlots creates the slots of courtID for every date in the
// requested range. Existing (court, date, start) slots are left untouched
// and excluded from the count, so reruns are idempotent.
//
// The context is checked between dates. A cancelled run returns the count
// created so far together with the context error.
func (c *SlotCatalog) GenerateSlots(
	ctx context.Context,
	actor model.Identity,
	courtID string,
	req model.GenerateSlotsRequest,
) (int, error) {
	plan, err := planSlots(req)
	if err != nil {
		return 0, err
	}
	court, err := c.court(ctx, courtID)
	if err != nil {
		return 0, err
	}
	if err := c.requireVenueOwner(ctx, actor, court.VenueID); err != nil {
		return 0, err
	}

	created := 0
	for date := plan.start; !date.After(plan.end); date = date.AddDays(1) {
		if err := ctx.Err(); err != nil {
			c.log.Info().Str("court_id", courtID).Int("created", created).Msg("slot generation cancelled")
			return created, err
		}

		n, err := c.insertDay(ctx, plan.slotsFor(courtID, date, c.rules.now()))
		created += n
		if err != nil {
			return created, err
		}
	}

	c.log.Info().
		Str("court_id", courtID).
		Stringer("start_date", plan.start).
		Stringer("end_date", plan.end).
		Int("created", created).
		Msg("slots generated")
	return created, nil
}

func (c *SlotCatalog) insertDay(ctx context.Context, slots []model.TimeSlot) (int, error) {
	ctx, cancel := c.rules.bounded(ctx)
	defer cancel()

	n, err := c.slots.InsertSlots(ctx, slots)
	return n, storageErr("insert slots", err, nil)
}
