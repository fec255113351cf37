package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/court-reservation/internal/apperror"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
	"github.com/Shivanand-hulikatti/court-reservation/internal/repository/memory"
)

// June 1st 2025, 06:00 UTC.
var dawn = time.Date(2025, time.June, 1, 6, 0, 0, 0, time.UTC)

func TestConcurrentBookingsOfOneSlotHaveExactlyOneWinner(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 9, 10)
	slotID := f.slotAt(t, courtA, day, 9)

	const n = 32
	users := make([]string, n)
	for i := range users {
		users[i] = fmt.Sprintf("racer-%02d", i)
	}

	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		attempts = make([]*Attempt, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			attempts[i] = f.coord.Reserve(context.Background(), users[i], model.CreateBookingRequest{
				CourtID:    courtA,
				TimeSlotID: slotID,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	confirmed, conflicts := 0, 0
	for _, a := range attempts {
		switch a.State {
		case StateConfirmed:
			confirmed++
		case StateConflict:
			conflicts++
			assert.ErrorIs(t, a.Err, apperror.ErrSlotAlreadyBooked)
		default:
			t.Errorf("unexpected state %s: %v", a.State, a.Err)
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, f.activeFor(t, users, slotID))
}

func TestBookingsOfDifferentSlotsAreIndependent(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 9, 11)

	_, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 9))
	require.NoError(t, err)
	_, err = f.book(userB, courtA, f.slotAt(t, courtA, day, 10))
	require.NoError(t, err)
}

func TestCreateAndCancelRoundTripThroughAvailability(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-05")
	f.generateDay(t, courtA, day, 9, 12)
	slotID := f.slotAt(t, courtA, day, 10)

	b, err := f.book(userA, courtA, slotID)
	require.NoError(t, err)
	assert.False(t, f.isListed(t, day, slotID))

	_, err = f.ledger.CancelBooking(context.Background(), b.ID, asUser(userA))
	require.NoError(t, err)
	assert.True(t, f.isListed(t, day, slotID))
}

// Court A has a 09:00 to 10:00 slot at $50 on 2025-06-01.
func TestScenarioCancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 9, 10)
	slotID := f.slotAt(t, courtA, day, 9)

	first, err := f.book(userA, courtA, slotID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, first.Status)
	assert.Equal(t, scenarioPrice, first.TotalPrice)
	assert.False(t, f.isListed(t, day, slotID))

	_, err = f.book(userB, courtA, slotID)
	assert.ErrorIs(t, err, apperror.ErrSlotAlreadyBooked)

	// Three hours before start, outside the two hour window.
	cancelled, err := f.ledger.CancelBooking(context.Background(), first.ID, asUser(userA))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.True(t, f.isListed(t, day, slotID))

	second, err := f.book(userB, courtA, slotID)
	require.NoError(t, err)
	assert.Equal(t, userB, second.UserID)

	assert.Equal(t, []string{
		model.EventBookingCreated,
		model.EventBookingCancelled,
		model.EventBookingCreated,
	}, f.events.types())
}

func TestBookingCapAllowsSixthAfterCancellation(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 10, 16)

	var held []*model.Booking
	for hour := 10; hour < 15; hour++ {
		b, err := f.book(userA, courtA, f.slotAt(t, courtA, day, hour))
		require.NoError(t, err)
		held = append(held, b)
	}

	sixth := f.slotAt(t, courtA, day, 15)
	_, err := f.book(userA, courtA, sixth)
	assert.ErrorIs(t, err, apperror.ErrBookingLimit)

	_, err = f.ledger.CancelBooking(context.Background(), held[2].ID, asUser(userA))
	require.NoError(t, err)

	_, err = f.book(userA, courtA, sixth)
	assert.NoError(t, err)
}

func TestLeadTimeBoundary(t *testing.T) {
	day := mustDate(t, "2025-06-01")

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"one minute short", time.Date(2025, 6, 1, 8, 1, 0, 0, time.UTC), apperror.ErrTooLate},
		{"exactly at threshold", time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), nil},
		{"well ahead", time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC), nil},
		{"already started", time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), apperror.ErrTooLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.now)
			f.generateDay(t, courtA, day, 9, 10)
			slotID := f.slotAt(t, courtA, day, 9)

			_, err := f.book(userA, courtA, slotID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTooLateMessageNamesThreshold(t *testing.T) {
	f := newFixture(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), func(r *Rules) { r.MinLead = 3 * time.Hour })
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 11, 12)

	_, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 11))
	require.ErrorIs(t, err, apperror.ErrTooLate)
	assert.Equal(t, "Booking must be made at least 3 hours in advance", apperror.MessageOf(err))
}

func TestMaxDaysInAdvance(t *testing.T) {
	f := newFixture(t, dawn)
	edge := mustDate(t, "2025-07-01")
	beyond := mustDate(t, "2025-07-02")
	f.generateDay(t, courtA, edge, 9, 10)
	f.generateDay(t, courtA, beyond, 9, 10)

	_, err := f.book(userA, courtA, f.slotAt(t, courtA, edge, 9))
	assert.NoError(t, err)

	_, err = f.book(userA, courtA, f.slotAt(t, courtA, beyond, 9))
	assert.ErrorIs(t, err, apperror.ErrTooFar)
}

func TestBookingTimesUseVenueTimezone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 09:00 in Kolkata is 03:30 UTC; at 03:00 UTC the slot is only 30 minutes away.
	f := newFixture(t, time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC), func(r *Rules) { r.Location = kolkata })
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 9, 10)

	_, err = f.book(userA, courtA, f.slotAt(t, courtA, day, 9))
	assert.ErrorIs(t, err, apperror.ErrTooLate)
}

func TestCreateBookingPreconditions(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-02")
	f.generateDay(t, courtA, day, 9, 11)
	f.generateDay(t, closedCourt, day, 9, 10)
	slotID := f.slotAt(t, courtA, day, 9)

	t.Run("unknown slot", func(t *testing.T) {
		_, err := f.book(userA, courtA, "missing")
		assert.ErrorIs(t, err, apperror.ErrSlotNotFound)
	})

	t.Run("slot of another court", func(t *testing.T) {
		_, err := f.book(userA, courtB, slotID)
		assert.ErrorIs(t, err, apperror.ErrSlotNotFound)
	})

	t.Run("inactive court", func(t *testing.T) {
		views, err := f.store.ListAvailableSlots(context.Background(), venueID, day)
		require.NoError(t, err)
		for _, v := range views {
			assert.NotEqual(t, closedCourt, v.CourtID)
		}

		// Slots of a closed court are still addressable by id.
		f.store.PutCourt(model.Court{ID: closedCourt, VenueID: venueID, Name: "Court C", IsActive: true})
		closedSlot := f.slotAt(t, closedCourt, day, 9)
		f.store.PutCourt(model.Court{ID: closedCourt, VenueID: venueID, Name: "Court C", IsActive: false})

		_, err = f.book(userA, closedCourt, closedSlot)
		assert.ErrorIs(t, err, apperror.ErrCourtInactive)
	})

	t.Run("slot closed by owner", func(t *testing.T) {
		closed := f.slotAt(t, courtA, day, 10)
		f.store.SetSlotAvailable(closed, false)

		_, err := f.book(userA, courtA, closed)
		assert.ErrorIs(t, err, apperror.ErrSlotUnavailable)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		_, err := f.book("", courtA, slotID)
		assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	})
}

func TestDeactivatedVenueRefusesBookings(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-02")
	f.generateDay(t, courtA, day, 9, 10)
	slotID := f.slotAt(t, courtA, day, 9)

	f.store.PutVenue(model.Venue{ID: venueID, OwnerID: ownerID, Name: "Riverside Sports", IsActive: false})

	assert.False(t, f.isListed(t, day, slotID))
	_, err := f.book(userA, courtA, slotID)
	assert.ErrorIs(t, err, apperror.ErrCourtInactive)
	assert.Zero(t, f.activeFor(t, []string{userA}, slotID))
}

func TestAutoConfirmCommitsConfirmed(t *testing.T) {
	f := newFixture(t, dawn, func(r *Rules) { r.AutoConfirm = true })
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 9, 10)

	b, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 9))
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
}

func TestCancelBooking(t *testing.T) {
	day := mustDate(t, "2025-06-01")

	setup := func(t *testing.T, now time.Time) (*fixture, *model.Booking) {
		f := newFixture(t, dawn)
		f.generateDay(t, courtA, day, 12, 13)
		b, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 12))
		require.NoError(t, err)
		f.now = now
		return f, b
	}

	t.Run("exactly at window is refused", func(t *testing.T) {
		f, b := setup(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
		_, err := f.ledger.CancelBooking(context.Background(), b.ID, asUser(userA))
		assert.ErrorIs(t, err, apperror.ErrCancellationWindow)
		assert.Equal(t, "Cannot cancel booking. It may be too late.", apperror.MessageOf(err))
	})

	t.Run("just outside window succeeds", func(t *testing.T) {
		f, b := setup(t, time.Date(2025, 6, 1, 9, 59, 0, 0, time.UTC))
		got, err := f.ledger.CancelBooking(context.Background(), b.ID, asUser(userA))
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status)
		assert.Equal(t, f.now, got.UpdatedAt)
	})

	t.Run("second cancel is a no-op", func(t *testing.T) {
		f, b := setup(t, dawn)
		_, err := f.ledger.CancelBooking(context.Background(), b.ID, asUser(userA))
		require.NoError(t, err)

		got, err := f.ledger.CancelBooking(context.Background(), b.ID, asUser(userA))
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status)
		assert.Equal(t, []string{model.EventBookingCreated, model.EventBookingCancelled}, f.events.types())
	})

	t.Run("unknown booking", func(t *testing.T) {
		f, _ := setup(t, dawn)
		_, err := f.ledger.CancelBooking(context.Background(), "missing", asUser(userA))
		assert.ErrorIs(t, err, apperror.ErrBookingNotFound)
	})

	t.Run("access", func(t *testing.T) {
		tests := []struct {
			name    string
			actor   model.Identity
			wantErr error
		}{
			{"another user", asUser(userB), apperror.ErrUnauthorized},
			{"owner of another venue", model.Identity{UserID: otherOwnerID, Role: model.RoleOwner}, apperror.ErrUnauthorized},
			{"venue owner", owner, nil},
			{"admin", admin, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f, b := setup(t, dawn)
				_, err := f.ledger.CancelBooking(context.Background(), b.ID, tt.actor)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					return
				}
				assert.NoError(t, err)
			})
		}
	})
}

func TestConfirmBooking(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 12, 14)

	b, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 12))
	require.NoError(t, err)

	_, err = f.ledger.ConfirmBooking(context.Background(), b.ID, asUser(userA))
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	got, err := f.ledger.ConfirmBooking(context.Background(), b.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	again, err := f.ledger.ConfirmBooking(context.Background(), b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, again.Status)

	other, err := f.book(userB, courtA, f.slotAt(t, courtA, day, 13))
	require.NoError(t, err)
	_, err = f.ledger.CancelBooking(context.Background(), other.ID, asUser(userB))
	require.NoError(t, err)
	_, err = f.ledger.ConfirmBooking(context.Background(), other.ID, owner)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	assert.Contains(t, f.events.types(), model.EventBookingConfirmed)
}

func TestSweepCompletesEndedBookings(t *testing.T) {
	f := newFixture(t, dawn, func(r *Rules) { r.PendingTTL = 0 })
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 8, 10)

	early, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 8))
	require.NoError(t, err)
	late, err := f.book(userB, courtA, f.slotAt(t, courtA, day, 9))
	require.NoError(t, err)

	// The 08:00 slot has ended, the 09:00 one has not.
	f.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	res, err := f.ledger.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SweepResult{CompletedCount: 1}, res)

	got, err := f.ledger.GetBooking(context.Background(), asUser(userA), early.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	_, err = f.ledger.CancelBooking(context.Background(), early.ID, admin)
	assert.ErrorIs(t, err, apperror.ErrCancellationWindow)

	pending, err := f.ledger.GetBooking(context.Background(), asUser(userB), late.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, pending.Status)

	// A second pass finds nothing new.
	res, err = f.ledger.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.CompletedCount)
	assert.Contains(t, f.events.types(), model.EventBookingCompleted)
}

func TestSweepExpiresStalePending(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 12, 14)
	stale := f.slotAt(t, courtA, day, 12)

	b, err := f.book(userA, courtA, stale)
	require.NoError(t, err)

	f.now = dawn.Add(29 * time.Minute)
	fresh, err := f.book(userB, courtA, f.slotAt(t, courtA, day, 13))
	require.NoError(t, err)

	res, err := f.ledger.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.ExpiredPendingCount)

	f.now = dawn.Add(31 * time.Minute)
	res, err = f.ledger.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExpiredPendingCount)
	assert.True(t, f.isListed(t, day, stale))

	got, err := f.ledger.GetBooking(context.Background(), admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	kept, err := f.ledger.GetBooking(context.Background(), admin, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, kept.Status)
	assert.Contains(t, f.events.types(), model.EventBookingExpired)
}

func TestConfirmedBookingsNeverExpire(t *testing.T) {
	f := newFixture(t, dawn)
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 12, 13)

	b, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 12))
	require.NoError(t, err)
	_, err = f.ledger.ConfirmBooking(context.Background(), b.ID, owner)
	require.NoError(t, err)

	f.now = dawn.Add(2 * time.Hour)
	n, err := f.ledger.ExpireStalePending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// preemptingStore applies a competing transition right before every
// conditional update, so the ledger always loses the race.
type preemptingStore struct {
	*memory.Store
	to model.BookingStatus
}

func (s *preemptingStore) TransitionBooking(
	ctx context.Context,
	id string,
	from []model.BookingStatus,
	to model.BookingStatus,
	at time.Time,
) (*model.Booking, error) {
	_, _ = s.Store.TransitionBooking(ctx, id, model.ActiveStatuses, s.to, at)
	return s.Store.TransitionBooking(ctx, id, from, to, at)
}

func TestCancelLosingToSweepLeavesCompleted(t *testing.T) {
	f := newFixtureWith(t, dawn, func(s *memory.Store) BookingStore {
		return &preemptingStore{Store: s, to: model.StatusCompleted}
	})
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 12, 13)

	b, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 12))
	require.NoError(t, err)

	_, err = f.ledger.CancelBooking(context.Background(), b.ID, asUser(userA))
	assert.ErrorIs(t, err, apperror.ErrCancellationWindow)

	got, err := f.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NotContains(t, f.events.types(), model.EventBookingCancelled)
}

func TestCancelLosingToCancelIsSuccess(t *testing.T) {
	f := newFixtureWith(t, dawn, func(s *memory.Store) BookingStore {
		return &preemptingStore{Store: s, to: model.StatusCancelled}
	})
	day := mustDate(t, "2025-06-01")
	f.generateDay(t, courtA, day, 12, 13)

	b, err := f.book(userA, courtA, f.slotAt(t, courtA, day, 12))
	require.NoError(t, err)

	got, err := f.ledger.CancelBooking(context.Background(), b.ID, asUser(userA))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

func TestBookingReads(t *testing.T) {
	f := newFixture(t, dawn)
	first := mustDate(t, "2025-06-02")
	second := mustDate(t, "2025-06-03")
	f.generateDay(t, courtA, first, 9, 11)
	f.generateDay(t, courtA, second, 9, 10)

	b1, err := f.book(userA, courtA, f.slotAt(t, courtA, first, 9))
	require.NoError(t, err)
	b2, err := f.book(userA, courtA, f.slotAt(t, courtA, first, 10))
	require.NoError(t, err)
	b3, err := f.book(userA, courtA, f.slotAt(t, courtA, second, 9))
	require.NoError(t, err)

	list, err := f.ledger.ListUserBookings(context.Background(), userA)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{b3.ID, b2.ID, b1.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "Court A", list[0].CourtName)
	assert.Equal(t, "Riverside Sports", list[0].VenueName)

	empty, err := f.ledger.ListUserBookings(context.Background(), userB)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.ledger.GetBooking(context.Background(), asUser(userB), b1.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	venueList, err := f.ledger.ListVenueBookings(context.Background(), owner, venueID)
	require.NoError(t, err)
	assert.Len(t, venueList, 3)

	_, err = f.ledger.ListVenueBookings(context.Background(), model.Identity{UserID: otherOwnerID, Role: model.RoleOwner}, venueID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.ledger.ListVenueBookings(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, apperror.ErrVenueNotFound)
}
