// Package model defines the core domain types for the court reservation system.
package model

import (
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// ActiveStatuses are the statuses that hold a slot.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

// IsActive reports whether the status still holds its slot.
func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal reports whether no further transition is allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Roles carried by an Identity.
const (
	RoleUser  = "user"
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller, as issued by the identity provider.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Venue is the read-only view of a facility owned by a venue owner.
type Venue struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Court is a bookable physical resource within a venue.
type Court struct {
	ID        string `json:"id"`
	VenueID   string `json:"venue_id"`
	Name      string `json:"name"`
	SportType string `json:"sport_type"`
	IsActive  bool   `json:"is_active"`
}

// TimeSlot is a bookable interval of one court on one date.
type TimeSlot struct {
	ID          string    `json:"id"`
	CourtID     string    `json:"court_id"`
	Date        Date      `json:"date"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	Price       float64   `json:"price"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// StartsAt returns the instant the slot begins in loc.
func (s *TimeSlot) StartsAt(loc *time.Location) time.Time {
	return s.Date.At(s.StartTime, loc)
}

// EndsAt returns the instant the slot ends in loc.
func (s *TimeSlot) EndsAt(loc *time.Location) time.Time {
	return s.Date.At(s.EndTime, loc)
}

// SlotView is one row of an availability listing.
type SlotView struct {
	SlotID    string    `json:"slot_id"`
	CourtID   string    `json:"court_id"`
	CourtName string    `json:"court_name"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Price     float64   `json:"price"`
}

// Booking is a reservation of exactly one slot by exactly one user.
type Booking struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	CourtID         string        `json:"court_id"`
	TimeSlotID      string        `json:"time_slot_id"`
	Status          BookingStatus `json:"status"`
	TotalPrice      float64       `json:"total_price"`
	SpecialRequests string        `json:"special_requests,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BookingDetail is a booking joined with its court, venue and slot.
type BookingDetail struct {
	Booking
	CourtName string    `json:"court_name"`
	VenueID   string    `json:"venue_id"`
	VenueName string    `json:"venue_name"`
	Date      Date      `json:"date"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// Booking event types emitted by the ledger on every transition.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent describes one booking state transition.
type BookingEvent struct {
	Type       string    `json:"event"`
	Booking    Booking   `json:"booking"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// GenerateSlotsRequest is the payload for generating slots for a court.
// Nil optional fields take the catalog defaults.
type GenerateSlotsRequest struct {
	StartDate       Date       `json:"start_date"`
	EndDate         Date       `json:"end_date"`
	IntervalMinutes *int       `json:"interval_minutes,omitempty"`
	DayStart        *TimeOfDay `json:"day_start_time,omitempty"`
	DayEnd          *TimeOfDay `json:"day_end_time,omitempty"`
	BasePrice       float64    `json:"base_price" validate:"gte=0"`
}

// GenerateSlotsResponse reports how many new slots were created.
type GenerateSlotsResponse struct {
	CreatedCount int `json:"created_count"`
}

// CreateBookingRequest is the payload for booking a slot.
type CreateBookingRequest struct {
	CourtID         string `json:"court_id" validate:"required,uuid"`
	TimeSlotID      string `json:"time_slot_id" validate:"required,uuid"`
	SpecialRequests string `json:"special_requests" validate:"max=500"`
}

// SweepResult summarises one sweep pass.
type SweepResult struct {
	CompletedCount      int `json:"completed_count"`
	ExpiredPendingCount int `json:"expired_pending_count"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
