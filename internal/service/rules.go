package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/court-reservation/internal/config"
)

// Rules are the booking policy knobs shared by the services.
type Rules struct {
	MinLead        time.Duration
	MaxDaysAhead   int
	CancelWindow   time.Duration
	MaxActive      int
	AutoConfirm    bool
	PendingTTL     time.Duration
	StorageTimeout time.Duration
	Location       *time.Location

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// DefaultRules returns the production defaults evaluated in UTC.
func DefaultRules() Rules {
	return Rules{
		MinLead:        time.Hour,
		MaxDaysAhead:   30,
		CancelWindow:   2 * time.Hour,
		MaxActive:      5,
		PendingTTL:     30 * time.Minute,
		StorageTimeout: 5 * time.Second,
		Location:       time.UTC,
	}
}

// RulesFromConfig builds Rules from the loaded configuration.
func RulesFromConfig(cfg config.Config, loc *time.Location) Rules {
	return Rules{
		MinLead:        time.Duration(cfg.MinHoursBeforeBooking) * time.Hour,
		MaxDaysAhead:   cfg.MaxDaysInAdvance,
		CancelWindow:   time.Duration(cfg.CancellationHoursBefore) * time.Hour,
		MaxActive:      cfg.MaxConcurrentBookings,
		AutoConfirm:    cfg.AutoConfirm,
		PendingTTL:     cfg.PendingTTL,
		StorageTimeout: cfg.StorageTimeout,
		Location:       loc,
	}
}

func (r Rules) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r Rules) loc() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// bounded limits one storage call.
func (r Rules) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.StorageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.StorageTimeout)
}
