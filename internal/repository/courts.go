package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// CourtRepository reads venues and courts. Both are owned by the venue
// management collaborator; this service never writes them.
type CourtRepository struct {
	db *pgxpool.Pool
}

// NewCourtRepository constructs a CourtRepository.
func NewCourtRepository(db *pgxpool.Pool) *CourtRepository {
	return &CourtRepository{db: db}
}

// GetVenue returns a single venue or ErrNotFound.
func (r *CourtRepository) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	var v model.Venue
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, name, is_active FROM venues WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.OwnerID, &v.Name, &v.IsActive)
	if err != nil {
		return nil, translate("get venue", err)
	}
	return &v, nil
}

// GetCourt returns a single court or ErrNotFound.
func (r *CourtRepository) GetCourt(ctx context.Context, id string) (*model.Court, error) {
	var c model.Court
	err := r.db.QueryRow(ctx,
		`SELECT id, venue_id, name, sport_type, is_active FROM courts WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.VenueID, &c.Name, &c.SportType, &c.IsActive)
	if err != nil {
		return nil, translate("get court", err)
	}
	return &c, nil
}
