// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/court-reservation/internal/apperror"
	"github.com/Shivanand-hulikatti/court-reservation/internal/auth"
	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
	"github.com/Shivanand-hulikatti/court-reservation/internal/service"
)

// BookingHandler holds all HTTP handlers for the court reservation API.
type BookingHandler struct {
	catalog  *service.SlotCatalog
	index    *service.AvailabilityIndex
	ledger   *service.BookingLedger
	coord    *service.ReservationCoordinator
	validate *validator.Validate
	log      zerolog.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(
	catalog *service.SlotCatalog,
	index *service.AvailabilityIndex,
	ledger *service.BookingLedger,
	coord *service.ReservationCoordinator,
	log zerolog.Logger,
) *BookingHandler {
	return &BookingHandler{
		catalog:  catalog,
		index:    index,
		ledger:   ledger,
		coord:    coord,
		validate: newValidator(),
		log:      log,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

// writeAppError maps an application error onto its HTTP status.
func (h *BookingHandler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, apperror.CodeOf(err), apperror.MessageOf(err))
}

// Rule violations are well-formed requests the booking policy refuses.
var unprocessable = map[string]bool{
	apperror.ErrTooLate.Code:            true,
	apperror.ErrTooFar.Code:             true,
	apperror.ErrBookingLimit.Code:       true,
	apperror.ErrCancellationWindow.Code: true,
	apperror.ErrInvalidTransition.Code:  true,
}

func statusFor(err error) int {
	switch apperror.ClassOf(err) {
	case apperror.ClassValidation:
		if unprocessable[apperror.CodeOf(err)] {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case apperror.ClassNotFound:
		return http.StatusNotFound
	case apperror.ClassConflict:
		return http.StatusConflict
	case apperror.ClassTransient:
		return http.StatusServiceUnavailable
	case apperror.ClassUnauthenticated:
		return http.StatusUnauthorized
	case apperror.ClassForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeValid decodes the body into dst and runs struct validation.
func (h *BookingHandler) decodeValid(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return apperror.ErrInvalidInput.WithMessage("invalid request body: %v", err).Wrap(err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperror.ErrInvalidInput.WithMessage("%s", fieldMessage(fe)).Wrap(err)
		}
		return apperror.ErrInvalidInput.Wrap(err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

func identity(r *http.Request) model.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GenerateSlots handles POST /courts/{courtID}/slots/generate
// Creates the slots of a court over a date range; existing slots are kept.
func (h *BookingHandler) GenerateSlots(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateSlotsRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	n, err := h.catalog.GenerateSlots(r.Context(), identity(r), chi.URLParam(r, "courtID"), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.GenerateSlotsResponse{CreatedCount: n})
}

// GetAvailability handles GET /venues/{venueID}/availability?date=YYYY-MM-DD[&court_id=]
// Returns the free slots of the venue on that date.
func (h *BookingHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, apperror.ErrInvalidInput.Code, "date query parameter is required")
		return
	}
	date, err := model.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperror.ErrInvalidInput.Code, "date must be formatted as YYYY-MM-DD")
		return
	}

	views, err := h.index.GetAvailableSlots(r.Context(), chi.URLParam(r, "venueID"), date, r.URL.Query().Get("court_id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// CreateBooking handles POST /bookings
// Runs the reservation coordinator and reports its outcome.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	attempt := h.coord.Reserve(r.Context(), identity(r).UserID, req)
	if attempt.State != service.StateConfirmed {
		h.writeAppError(w, r, attempt.Err)
		return
	}

	writeJSON(w, http.StatusCreated, attempt.Booking)
}

// ListMyBookings handles GET /bookings
// Returns the caller's bookings, newest slot first.
func (h *BookingHandler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.ListUserBookings(r.Context(), identity(r).UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// GetBooking handles GET /bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.ledger.GetBooking(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// CancelBooking handles POST /bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.ledger.CancelBooking(r.Context(), chi.URLParam(r, "id"), identity(r))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// ConfirmBooking handles POST /bookings/{id}/confirm
func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.ledger.ConfirmBooking(r.Context(), chi.URLParam(r, "id"), identity(r))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// ListVenueBookings handles GET /venues/{venueID}/bookings
// Owner dashboard listing of every booking on the venue's courts.
func (h *BookingHandler) ListVenueBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.ListVenueBookings(r.Context(), identity(r), chi.URLParam(r, "venueID"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// Sweep handles POST /admin/sweep
// Runs one completion and pending-expiry pass immediately.
func (h *BookingHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.SweepExpired(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
