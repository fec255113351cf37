package memory

import "github.com/Shivanand-hulikatti/court-reservation/internal/model"

// Demo data loaded when the service runs without PostgreSQL.
const (
	DemoVenueID = "0b6f4c1e-8d2a-4f4e-9a51-3c6d2e7f9a10"
	DemoOwnerID = "demo-owner"
)

var demoCourts = []model.Court{
	{ID: "3f2b8c4d-1e6a-4b7c-8d9e-0a1b2c3d4e01", VenueID: DemoVenueID, Name: "Court 1", SportType: "badminton", IsActive: true},
	{ID: "3f2b8c4d-1e6a-4b7c-8d9e-0a1b2c3d4e02", VenueID: DemoVenueID, Name: "Court 2", SportType: "badminton", IsActive: true},
	{ID: "3f2b8c4d-1e6a-4b7c-8d9e-0a1b2c3d4e03", VenueID: DemoVenueID, Name: "Pitch", SportType: "football", IsActive: true},
}

// SeedDemo loads one venue with a few courts and returns the court ids.
func (s *Store) SeedDemo() []string {
	s.PutVenue(model.Venue{ID: DemoVenueID, OwnerID: DemoOwnerID, Name: "Demo Sports Centre", IsActive: true})

	ids := make([]string, 0, len(demoCourts))
	for _, c := range demoCourts {
		s.PutCourt(c)
		ids = append(ids, c.ID)
	}
	return ids
}
