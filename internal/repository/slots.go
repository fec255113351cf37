package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// SlotRepository handles persistence for time slots.
type SlotRepository struct {
	db *pgxpool.Pool
}

// NewSlotRepository constructs a SlotRepository.
func NewSlotRepository(db *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{db: db}
}

// InsertSlots inserts slots in one batch, skipping any whose
// (court_id, date, start_time) already exists. It returns how many rows
// were actually created.
func (r *SlotRepository) InsertSlots(ctx context.Context, slots []model.TimeSlot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(
			`INSERT INTO time_slots (id, court_id, date, start_time, end_time, price, is_available, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (court_id, date, start_time) DO NOTHING`,
			s.ID, s.CourtID, s.Date.Time(), pgTime(s.StartTime), pgTime(s.EndTime), s.Price, s.IsAvailable, s.CreatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	created := 0
	for range slots {
		tag, err := br.Exec()
		if err != nil {
			return created, translate("insert slot", err)
		}
		created += int(tag.RowsAffected())
	}
	return created, translate("close slot batch", br.Close())
}

// GetSlot returns a single slot or ErrNotFound.
func (r *SlotRepository) GetSlot(ctx context.Context, id string) (*model.TimeSlot, error) {
	var (
		s          model.TimeSlot
		date       time.Time
		start, end pgtype.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, court_id, date, start_time, end_time, price, is_available, created_at
		 FROM time_slots WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.CourtID, &date, &start, &end, &s.Price, &s.IsAvailable, &s.CreatedAt)
	if err != nil {
		return nil, translate("get slot", err)
	}
	s.Date = model.DateOf(date)
	s.StartTime = timeOfDay(start)
	s.EndTime = timeOfDay(end)
	return &s, nil
}

// ListAvailableSlots returns the open, unbooked slots of an active venue's
// active courts on date, ordered by start time then court name.
func (r *SlotRepository) ListAvailableSlots(ctx context.Context, venueID string, date model.Date) ([]model.SlotView, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.court_id, c.name, s.start_time, s.end_time, s.price
		 FROM time_slots s
		 JOIN courts c ON c.id = s.court_id
		 JOIN venues v ON v.id = c.venue_id
		 WHERE c.venue_id = $1
		   AND v.is_active
		   AND c.is_active
		   AND s.date = $2
		   AND s.is_available
		   AND NOT EXISTS (
		       SELECT 1 FROM bookings b
		       WHERE b.time_slot_id = s.id
		         AND b.status IN ('pending', 'confirmed')
		   )
		 ORDER BY s.start_time ASC, c.name ASC, s.id ASC`,
		venueID, date.Time(),
	)
	if err != nil {
		return nil, translate("list available slots", err)
	}
	defer rows.Close()

	var views []model.SlotView
	for rows.Next() {
		var (
			v          model.SlotView
			start, end pgtype.Time
		)
		if err := rows.Scan(&v.SlotID, &v.CourtID, &v.CourtName, &start, &end, &v.Price); err != nil {
			return nil, translate("scan slot view", err)
		}
		v.StartTime = timeOfDay(start)
		v.EndTime = timeOfDay(end)
		views = append(views, v)
	}
	return views, translate("iterate slot views", rows.Err())
}

func pgTime(t model.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func timeOfDay(t pgtype.Time) model.TimeOfDay {
	if !t.Valid {
		return 0
	}
	return model.TimeOfDay(time.Duration(t.Microseconds) * time.Microsecond)
}
