package handler

import (
	"errors"   // for errors.Is comparisons against saga sentinels
	"net/http" // HTTP status codes
	"strings"  // trimming the idempotency key header

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/ridehub/bus-booking/internal/booking"
	"github.com/ridehub/bus-booking/internal/idempotency"
	"github.com/ridehub/bus-booking/internal/inventory"
	"github.com/ridehub/bus-booking/internal/model"
	"github.com/ridehub/bus-booking/internal/pricing"
	"github.com/ridehub/bus-booking/internal/ticket"
)

// BookingHandler exposes the booking saga over HTTP.  All routes sit behind
// the JWT middleware, so handlers read the authenticated user from context
// and may return 401 only when the claim is missing or malformed.  State
// changes go through the orchestrator; handlers never touch repositories
// directly.
type BookingHandler struct {
	Saga *booking.Orchestrator
}

// NewBookingHandler constructs a BookingHandler.  The orchestrator must be
// non-nil.
func NewBookingHandler(saga *booking.Orchestrator) *BookingHandler {
	if saga == nil {
		panic("nil orchestrator passed to NewBookingHandler")
	}
	return &BookingHandler{Saga: saga}
}

// createBookingBody is the JSON payload for POST /v1/bookings.  The
// idempotency key normally arrives in the Idempotency-Key header; the body
// field exists for clients that cannot set custom headers.
type createBookingBody struct {
	TripID         uint64   `json:"trip_id"`
	SeatIDs        []uint64 `json:"seat_ids"`
	PromoCode      string   `json:"promo_code"`
	IdempotencyKey string   `json:"idempotency_key"`
	ContactName    string   `json:"contact_name"`
	ContactEmail   string   `json:"contact_email"`
	ContactPhone   string   `json:"contact_phone"`
}

// Create handles POST /v1/bookings.  It drives the whole creation step of
// the saga: seat hold, pricing, payment request.  Replays of the same
// idempotency key return the first outcome with the same status code the
// original received.  Responds 201 on success, 409 when seats are taken or
// when the original request is still in flight, 400 on validation errors.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createBookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	idemKey := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if idemKey == "" {
		idemKey = strings.TrimSpace(body.IdempotencyKey)
	}
	if idemKey == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Idempotency-Key is required"})
	}
	if body.TripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip_id is required"})
	}

	snap, err := h.Saga.CreateBooking(c.Request().Context(), booking.CreateBookingInput{
		TripID:       body.TripID,
		SeatIDs:      body.SeatIDs,
		PromoCode:    body.PromoCode,
		IdemKey:      idemKey,
		UserID:       userID,
		ContactName:  body.ContactName,
		ContactEmail: body.ContactEmail,
		ContactPhone: body.ContactPhone,
	})
	if err != nil {
		switch {
		case errors.Is(err, idempotency.ErrDuplicateInFlight):
			return c.JSON(http.StatusConflict, echo.Map{"error": "request with this key is still being processed"})
		case errors.Is(err, inventory.ErrSeatUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":       "some seats are unavailable",
				"unavailable": snap.UnavailableSeatIDs,
			})
		case errors.Is(err, booking.ErrEmptySeatList):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
		case errors.Is(err, booking.ErrTripNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		case errors.Is(err, booking.ErrSeatsOutsideSchedule):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat does not belong to this trip"})
		case errors.Is(err, pricing.ErrPromoInvalid):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "promo code is not valid"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":   snap.BookingID,
		"booking_code": snap.BookingCode,
		"status":       snap.Status,
		"amount_cents": snap.AmountCents,
	})
}

// Get handles GET /v1/bookings/:id.  Callers may only read their own
// bookings; a foreign id responds 404 rather than 403 so booking ids are
// not probeable.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := h.loadOwned(c, userID)
	if err != nil {
		return h.notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": bookingView(b)})
}

// CheckIn handles POST /v1/bookings/:id/checkin.  It moves a paid or
// confirmed booking to CHECKED_IN.  Bookings in any other state respond
// 409.
func (h *BookingHandler) CheckIn(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := h.loadOwned(c, userID)
	if err != nil {
		return h.notFoundOr500(c, err)
	}
	if err := h.Saga.CheckIn(c.Request().Context(), b.ID); err != nil {
		if errors.Is(err, booking.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not ready for check-in"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check in"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.BookingCheckedIn})
}

// Cancel handles POST /v1/bookings/:id/cancel.  Cancelling releases the
// booking's seats back to inventory.  Terminal bookings respond 409.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := h.loadOwned(c, userID)
	if err != nil {
		return h.notFoundOr500(c, err)
	}
	if err := h.Saga.Cancel(c.Request().Context(), b.ID); err != nil {
		if errors.Is(err, booking.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking can no longer be cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.BookingCancelled})
}

// QR handles GET /v1/bookings/:id/qr.  It renders the booking code as a
// PNG for gate scanners.  Only paid, confirmed or checked-in bookings have
// a scannable ticket.
func (h *BookingHandler) QR(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := h.loadOwned(c, userID)
	if err != nil {
		return h.notFoundOr500(c, err)
	}
	switch b.Status {
	case model.BookingPaid, model.BookingConfirmed, model.BookingCheckedIn:
	default:
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking has no scannable ticket"})
	}
	png, err := ticket.CheckInQR(b.BookingCode)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to render ticket"})
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// loadOwned fetches the booking from the path parameter and enforces
// ownership.  A booking belonging to another user is reported as
// ErrBookingNotFound.
func (h *BookingHandler) loadOwned(c echo.Context, userID string) (*model.Booking, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return nil, booking.ErrBookingNotFound
	}
	b, err := h.Saga.Get(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, booking.ErrBookingNotFound
	}
	return b, nil
}

func (h *BookingHandler) notFoundOr500(c echo.Context, err error) error {
	if errors.Is(err, booking.ErrBookingNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
}

// bookingView shapes a booking for JSON responses.  Internal bookkeeping
// fields (idempotency key, version) stay out of the payload.
func bookingView(b *model.Booking) echo.Map {
	return echo.Map{
		"id":           b.ID,
		"booking_code": b.BookingCode,
		"trip_id":      b.ScheduleID,
		"seat_ids":     b.SeatIDs,
		"status":       b.Status,
		"amount_cents": b.AmountCents,
		"promo_code":   b.PromoCode,
		"created_at":   b.CreatedAt,
		"updated_at":   b.UpdatedAt,
	}
}

// getUserID extracts the authenticated user's id stored by the JWT
// middleware.  Subjects are opaque strings issued by the user service.
func getUserID(c echo.Context) (string, error) {
	v := c.Get("user_id")
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user id missing from context")
}
