package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

const bookingColumns = `b.id, b.user_id, b.court_id, b.time_slot_id, b.status, b.total_price,
	COALESCE(b.special_requests, ''), b.created_at, b.updated_at`

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// InsertBooking writes a new booking in a single statement.
//
// ─────────────────────────────────────────────────────────────────────────────
// RACE CONDITION EXPLAINED
// ─────────────────────────────────────────────────────────────────────────────
//
// Naive check-then-insert (BROKEN):
//
//	request A: SELECT … FROM bookings WHERE time_slot_id = S AND active → none
//	request B: SELECT … FROM bookings WHERE time_slot_id = S AND active → none
//	request A: INSERT booking for S
//	request B: INSERT booking for S
//	Result: two active bookings for one slot. DOUBLE BOOKED.
//
// SOLUTION: a partial unique index
//
//	CREATE UNIQUE INDEX bookings_active_slot_uidx ON bookings (time_slot_id)
//	WHERE status IN ('pending', 'confirmed');
//
//	PostgreSQL checks the index inside the INSERT itself. Concurrent inserts
//	for the same slot serialise on the index entry: the first commits, every
//	other one fails with SQLSTATE 23505 naming the index, which is mapped to
//	ErrSlotAlreadyBooked. Cancelled and completed rows fall outside the index
//	predicate, so a slot can be rebooked after a cancellation.
//
// ─────────────────────────────────────────────────────────────────────────────
func (r *BookingRepository) InsertBooking(ctx context.Context, b *model.Booking) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO bookings (id, user_id, court_id, time_slot_id, status, total_price, special_requests, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		b.ID, b.UserID, b.CourtID, b.TimeSlotID, string(b.Status), b.TotalPrice, b.SpecialRequests, b.CreatedAt, b.UpdatedAt,
	)
	return translate("insert booking", err)
}

// GetBooking returns a single booking or ErrNotFound.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, translate("get booking", err)
	}
	return b, nil
}

// CountActiveBookings counts a user's pending and confirmed bookings.
func (r *BookingRepository) CountActiveBookings(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = $1 AND status IN ('pending', 'confirmed')`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, translate("count active bookings", err)
	}
	return n, nil
}

// TransitionBooking moves a booking to status `to` only if its current
// status is one of `from`. This single-row compare-and-swap serialises a
// cancellation racing the sweep: whichever UPDATE runs second matches no row
// and gets ErrStatusMismatch.
func (r *BookingRepository) TransitionBooking(
	ctx context.Context,
	id string,
	from []model.BookingStatus,
	to model.BookingStatus,
	at time.Time,
) (*model.Booking, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE bookings b SET status = $3, updated_at = $4
		 WHERE b.id = $1 AND b.status = ANY($2)
		 RETURNING `+bookingColumns,
		id, statusStrings(from), string(to), at,
	)
	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translate("transition booking", err)
	}

	// No row matched: tell a missing booking apart from a status race.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, translate("check booking exists", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrStatusMismatch
}

// CompleteEndedBookings marks every active booking whose slot ended at or
// before now as completed. Slot wall-clock times are interpreted in loc.
func (r *BookingRepository) CompleteEndedBookings(ctx context.Context, now time.Time, loc *time.Location) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE bookings b SET status = 'completed', updated_at = $1
		 FROM time_slots s
		 WHERE s.id = b.time_slot_id
		   AND b.status IN ('pending', 'confirmed')
		   AND ((s.date + s.end_time) AT TIME ZONE $2::text) <= $1
		 RETURNING `+bookingColumns,
		now, loc.String(),
	)
	if err != nil {
		return nil, translate("complete ended bookings", err)
	}
	return collectBookings("complete ended bookings", rows)
}

// ExpirePendingBookings cancels pending bookings created before cutoff.
func (r *BookingRepository) ExpirePendingBookings(ctx context.Context, cutoff, at time.Time) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE bookings b SET status = 'cancelled', updated_at = $2
		 WHERE b.status = 'pending' AND b.created_at < $1
		 RETURNING `+bookingColumns,
		cutoff, at,
	)
	if err != nil {
		return nil, translate("expire pending bookings", err)
	}
	return collectBookings("expire pending bookings", rows)
}

const detailQuery = `SELECT ` + bookingColumns + `,
	c.name, v.id, v.name, s.date, s.start_time, s.end_time
	FROM bookings b
	JOIN courts c ON c.id = b.court_id
	JOIN venues v ON v.id = c.venue_id
	JOIN time_slots s ON s.id = b.time_slot_id`

// ListUserBookings returns a user's bookings, newest slot first.
func (r *BookingRepository) ListUserBookings(ctx context.Context, userID string) ([]model.BookingDetail, error) {
	rows, err := r.db.Query(ctx,
		detailQuery+` WHERE b.user_id = $1 ORDER BY s.date DESC, s.start_time DESC`,
		userID,
	)
	if err != nil {
		return nil, translate("list user bookings", err)
	}
	return collectDetails("list user bookings", rows)
}

// ListVenueBookings returns every booking on a venue's courts, newest slot first.
func (r *BookingRepository) ListVenueBookings(ctx context.Context, venueID string) ([]model.BookingDetail, error) {
	rows, err := r.db.Query(ctx,
		detailQuery+` WHERE v.id = $1 ORDER BY s.date DESC, s.start_time DESC`,
		venueID,
	)
	if err != nil {
		return nil, translate("list venue bookings", err)
	}
	return collectDetails("list venue bookings", rows)
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b      model.Booking
		status string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.CourtID, &b.TimeSlotID, &status, &b.TotalPrice,
		&b.SpecialRequests, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}

func collectBookings(op string, rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, *b)
	}
	return out, translate(op, rows.Err())
}

func collectDetails(op string, rows pgx.Rows) ([]model.BookingDetail, error) {
	defer rows.Close()

	var out []model.BookingDetail
	for rows.Next() {
		var (
			d          model.BookingDetail
			status     string
			date       time.Time
			start, end pgtype.Time
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.CourtID, &d.TimeSlotID, &status, &d.TotalPrice,
			&d.SpecialRequests, &d.CreatedAt, &d.UpdatedAt,
			&d.CourtName, &d.VenueID, &d.VenueName, &date, &start, &end); err != nil {
			return nil, translate(op, err)
		}
		d.Status = model.BookingStatus(status)
		d.Date = model.DateOf(date)
		d.StartTime = timeOfDay(start)
		d.EndTime = timeOfDay(end)
		out = append(out, d)
	}
	return out, translate(op, rows.Err())
}

func statusStrings(statuses []model.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
