package apperror

// Validation errors.
var (
	ErrInvalidInput       = New(ClassValidation, "invalid_input", "Please check your input and try again")
	ErrInvalidInterval    = New(ClassValidation, "invalid_interval", "Slot interval must be positive and evenly divide the day window")
	ErrInvalidDateRange   = New(ClassValidation, "invalid_date_range", "Start must not be after end")
	ErrSlotNotFound       = New(ClassValidation, "slot_not_found", "This time slot does not exist for the selected court")
	ErrCourtInactive      = New(ClassValidation, "court_inactive", "This court is currently unavailable")
	ErrSlotUnavailable    = New(ClassValidation, "slot_unavailable", "This time slot is not open for booking")
	ErrTooLate            = New(ClassValidation, "too_late", "Booking must be made at least 1 hour in advance")
	ErrTooFar             = New(ClassValidation, "too_far", "Cannot book more than 30 days in advance")
	ErrBookingLimit       = New(ClassValidation, "booking_limit", "You have reached the maximum number of active bookings")
	ErrCancellationWindow = New(ClassValidation, "cancellation_window", "Cannot cancel booking. It may be too late.")
	ErrInvalidTransition  = New(ClassValidation, "invalid_transition", "The booking can no longer change to that status")
)

// Not found errors.
var (
	ErrBookingNotFound = New(ClassNotFound, "booking_not_found", "Booking not found")
	ErrCourtNotFound   = New(ClassNotFound, "court_not_found", "Court not found")
	ErrVenueNotFound   = New(ClassNotFound, "venue_not_found", "Venue not found")
)

// Conflict errors.
var (
	ErrSlotAlreadyBooked = New(ClassConflict, "slot_already_booked", "This time slot was just taken, please pick another")
)

// Transient errors.
var (
	ErrTransient = New(ClassTransient, "transient", "Temporarily unable to complete the request, please retry")
)

// Authorization errors.
var (
	ErrUnauthenticated = New(ClassUnauthenticated, "unauthenticated", "You must be signed in to perform this action")
	ErrUnauthorized    = New(ClassForbidden, "unauthorized", "You do not have permission to perform this action")
)
