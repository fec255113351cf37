// Package memory is an in-process store with the same constraint semantics
// as the PostgreSQL repositories. A single mutex arbitrates every write,
// and an index from slot to its active booking plays the role of the
// partial unique index.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
	"github.com/Shivanand-hulikatti/court-reservation/internal/repository"
)

type slotKey struct {
	courtID string
	date    model.Date
	start   model.TimeOfDay
}

// Store implements the venue, slot and booking stores.
type Store struct {
	mu sync.Mutex

	venues   map[string]model.Venue
	courts   map[string]model.Court
	slots    map[string]model.TimeSlot
	slotKeys map[slotKey]string
	bookings map[string]model.Booking

	// activeBySlot maps a slot id to the id of its pending or confirmed
	// booking.
	activeBySlot map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		venues:       make(map[string]model.Venue),
		courts:       make(map[string]model.Court),
		slots:        make(map[string]model.TimeSlot),
		slotKeys:     make(map[slotKey]string),
		bookings:     make(map[string]model.Booking),
		activeBySlot: make(map[string]string),
	}
}

// PutVenue creates or replaces a venue.
func (s *Store) PutVenue(v model.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[v.ID] = v
}

// PutCourt creates or replaces a court.
func (s *Store) PutCourt(c model.Court) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courts[c.ID] = c
}

// SetSlotAvailable flips the owner-controlled open flag of a slot.
func (s *Store) SetSlotAvailable(id string, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.slots[id]; ok {
		slot.IsAvailable = open
		s.slots[id] = slot
	}
}

func (s *Store) GetVenue(_ context.Context, id string) (*model.Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.venues[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (s *Store) GetCourt(_ context.Context, id string) (*model.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

// InsertSlots skips slots whose (court, date, start) already exists.
func (s *Store) InsertSlots(ctx context.Context, slots []model.TimeSlot) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for _, slot := range slots {
		key := slotKey{courtID: slot.CourtID, date: slot.Date, start: slot.StartTime}
		if _, exists := s.slotKeys[key]; exists {
			continue
		}
		s.slots[slot.ID] = slot
		s.slotKeys[key] = slot.ID
		created++
	}
	return created, nil
}

func (s *Store) GetSlot(_ context.Context, id string) (*model.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &slot, nil
}

func (s *Store) ListAvailableSlots(_ context.Context, venueID string, date model.Date) ([]model.SlotView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.venues[venueID]; !ok || !v.IsActive {
		return nil, nil
	}

	var views []model.SlotView
	for _, slot := range s.slots {
		if slot.Date != date || !slot.IsAvailable {
			continue
		}
		court, ok := s.courts[slot.CourtID]
		if !ok || court.VenueID != venueID || !court.IsActive {
			continue
		}
		if _, held := s.activeBySlot[slot.ID]; held {
			continue
		}
		views = append(views, model.SlotView{
			SlotID:    slot.ID,
			CourtID:   slot.CourtID,
			CourtName: court.Name,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Price:     slot.Price,
		})
	}

	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.CourtName != b.CourtName {
			return a.CourtName < b.CourtName
		}
		return a.SlotID < b.SlotID
	})
	return views, nil
}

// InsertBooking is the compare-and-insert: under the store lock it checks
// the slot index and writes the booking in one step.
func (s *Store) InsertBooking(ctx context.Context, b *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Status.IsActive() {
		if _, held := s.activeBySlot[b.TimeSlotID]; held {
			return repository.ErrSlotAlreadyBooked
		}
		s.activeBySlot[b.TimeSlotID] = b.ID
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s *Store) CountActiveBookings(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, b := range s.bookings {
		if b.UserID == userID && b.Status.IsActive() {
			n++
		}
	}
	return n, nil
}

func (s *Store) TransitionBooking(
	_ context.Context,
	id string,
	from []model.BookingStatus,
	to model.BookingStatus,
	at time.Time,
) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !slices.Contains(from, b.Status) {
		return nil, repository.ErrStatusMismatch
	}
	s.setStatus(&b, to, at)
	return &b, nil
}

func (s *Store) CompleteEndedBookings(_ context.Context, now time.Time, loc *time.Location) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for _, b := range s.sortedBookings() {
		if !b.Status.IsActive() {
			continue
		}
		slot, ok := s.slots[b.TimeSlotID]
		if !ok || slot.EndsAt(loc).After(now) {
			continue
		}
		s.setStatus(&b, model.StatusCompleted, now)
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) ExpirePendingBookings(_ context.Context, cutoff, at time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for _, b := range s.sortedBookings() {
		if b.Status != model.StatusPending || !b.CreatedAt.Before(cutoff) {
			continue
		}
		s.setStatus(&b, model.StatusCancelled, at)
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) ListUserBookings(_ context.Context, userID string) ([]model.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.details(func(b model.Booking, _ model.Court) bool { return b.UserID == userID }), nil
}

func (s *Store) ListVenueBookings(_ context.Context, venueID string) ([]model.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.details(func(_ model.Booking, c model.Court) bool { return c.VenueID == venueID }), nil
}

// setStatus must be called with mu held.
func (s *Store) setStatus(b *model.Booking, to model.BookingStatus, at time.Time) {
	if b.Status.IsActive() && !to.IsActive() && s.activeBySlot[b.TimeSlotID] == b.ID {
		delete(s.activeBySlot, b.TimeSlotID)
	}
	b.Status = to
	b.UpdatedAt = at
	s.bookings[b.ID] = *b
}

// sortedBookings must be called with mu held. Iteration order is fixed so
// sweeps report bookings deterministically.
func (s *Store) sortedBookings() []model.Booking {
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// details must be called with mu held.
func (s *Store) details(keep func(model.Booking, model.Court) bool) []model.BookingDetail {
	var out []model.BookingDetail
	for _, b := range s.bookings {
		court, ok := s.courts[b.CourtID]
		if !ok || !keep(b, court) {
			continue
		}
		slot := s.slots[b.TimeSlotID]
		out = append(out, model.BookingDetail{
			Booking:   b,
			CourtName: court.Name,
			VenueID:   court.VenueID,
			VenueName: s.venues[court.VenueID].Name,
			Date:      slot.Date,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date.After(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime > b.StartTime
		}
		return strings.Compare(a.ID, b.ID) < 0
	})
	return out
}
