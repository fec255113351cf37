package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/court-reservation/internal/logger"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
	"github.com/Shivanand-hulikatti/court-reservation/internal/repository/memory"
)

const (
	venueID       = "5f1c2a7e-0000-4000-8000-000000000001"
	otherVenueID  = "5f1c2a7e-0000-4000-8000-000000000002"
	courtA        = "7a3e9b10-0000-4000-8000-00000000000a"
	courtB        = "7a3e9b10-0000-4000-8000-00000000000b"
	closedCourt   = "7a3e9b10-0000-4000-8000-00000000000c"
	foreignCourt  = "7a3e9b10-0000-4000-8000-00000000000d"
	ownerID       = "owner-1"
	otherOwnerID  = "owner-2"
	adminID       = "admin-1"
	userA         = "user-a"
	userB         = "user-b"
	scenarioPrice = 50.0
)

var (
	owner = model.Identity{UserID: ownerID, Role: model.RoleOwner}
	admin = model.Identity{UserID: adminID, Role: model.RoleAdmin}
)

func asUser(id string) model.Identity { return model.Identity{UserID: id, Role: model.RoleUser} }

// recorder is an EventSink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []model.BookingEvent
}

func (r *recorder) Emit(_ context.Context, ev model.BookingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store  *memory.Store
	events *recorder
	now    time.Time

	catalog *SlotCatalog
	index   *AvailabilityIndex
	ledger  *BookingLedger
	coord   *ReservationCoordinator
}

// newFixture wires the services over a seeded memory store with the clock
// frozen at now. Optional mutators adjust the rules.
func newFixture(t *testing.T, now time.Time, mutate ...func(*Rules)) *fixture {
	t.Helper()
	return newFixtureWith(t, now, nil, mutate...)
}

// newFixtureWith lets a test put a wrapper in front of the bookings store.
func newFixtureWith(t *testing.T, now time.Time, wrap func(*memory.Store) BookingStore, mutate ...func(*Rules)) *fixture {
	t.Helper()

	f := &fixture{store: memory.New(), events: &recorder{}, now: now}
	f.store.PutVenue(model.Venue{ID: venueID, OwnerID: ownerID, Name: "Riverside Sports", IsActive: true})
	f.store.PutVenue(model.Venue{ID: otherVenueID, OwnerID: otherOwnerID, Name: "Hilltop Arena", IsActive: true})
	f.store.PutCourt(model.Court{ID: courtA, VenueID: venueID, Name: "Court A", SportType: "badminton", IsActive: true})
	f.store.PutCourt(model.Court{ID: courtB, VenueID: venueID, Name: "Court B", SportType: "badminton", IsActive: true})
	f.store.PutCourt(model.Court{ID: closedCourt, VenueID: venueID, Name: "Court C", SportType: "pickleball", IsActive: false})
	f.store.PutCourt(model.Court{ID: foreignCourt, VenueID: otherVenueID, Name: "Main", SportType: "football", IsActive: true})

	rules := DefaultRules()
	rules.Now = func() time.Time { return f.now }
	for _, m := range mutate {
		m(&rules)
	}

	var bookings BookingStore = f.store
	if wrap != nil {
		bookings = wrap(f.store)
	}

	log := logger.Nop()
	f.catalog = NewSlotCatalog(f.store, f.store, rules, log)
	f.index = NewAvailabilityIndex(f.store, rules)
	f.ledger = NewBookingLedger(f.store, f.store, bookings, rules, f.events, log)
	f.coord = NewReservationCoordinator(f.ledger, 0, log)
	return f
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func intPtr(n int) *int { return &n }

func todPtr(h, m int) *model.TimeOfDay {
	t := model.NewTimeOfDay(h, m)
	return &t
}

// generateDay creates hourly slots between from and to on date.
func (f *fixture) generateDay(t *testing.T, courtID string, date model.Date, from, to int) int {
	t.Helper()
	n, err := f.catalog.GenerateSlots(context.Background(), owner, courtID, model.GenerateSlotsRequest{
		StartDate:       date,
		EndDate:         date,
		IntervalMinutes: intPtr(60),
		DayStart:        todPtr(from, 0),
		DayEnd:          todPtr(to, 0),
		BasePrice:       scenarioPrice,
	})
	require.NoError(t, err)
	return n
}

// slotAt returns the id of the free slot of courtID starting at hour on date.
func (f *fixture) slotAt(t *testing.T, courtID string, date model.Date, hour int) string {
	t.Helper()
	views, err := f.index.GetAvailableSlots(context.Background(), venueID, date, courtID)
	require.NoError(t, err)
	for _, v := range views {
		if v.StartTime == model.NewTimeOfDay(hour, 0) {
			return v.SlotID
		}
	}
	t.Fatalf("no free slot at %02d:00 on %s for court %s", hour, date, courtID)
	return ""
}

func (f *fixture) isListed(t *testing.T, date model.Date, slotID string) bool {
	t.Helper()
	views, err := f.index.GetAvailableSlots(context.Background(), venueID, date, "")
	require.NoError(t, err)
	for _, v := range views {
		if v.SlotID == slotID {
			return true
		}
	}
	return false
}

func (f *fixture) book(userID, courtID, slotID string) (*model.Booking, error) {
	return f.ledger.CreateBooking(context.Background(), userID, model.CreateBookingRequest{
		CourtID:    courtID,
		TimeSlotID: slotID,
	})
}

// activeFor counts pending or confirmed bookings of slotID across users.
func (f *fixture) activeFor(t *testing.T, users []string, slotID string) int {
	t.Helper()
	n := 0
	for _, u := range users {
		list, err := f.store.ListUserBookings(context.Background(), u)
		require.NoError(t, err)
		for _, b := range list {
			if b.TimeSlotID == slotID && b.Status.IsActive() {
				n++
			}
		}
	}
	return n
}
