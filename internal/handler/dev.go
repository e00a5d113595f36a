package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// DevHandler drives the sandbox gateway so a payment can be completed
// without the real checkout page.  It is only mounted outside production
// with PAYMENT_DRIVER=sandbox.
type DevHandler struct {
	Bookings   *booking.Service
	Reconciler *payment.Reconciler
	Sandbox    *payment.Sandbox
	Store      repository.Store
}

type simulateReq struct {
	Status string `json:"status"`
}

// SimulatePayment settles the sandbox session of a booking as paid,
// failed or expired and reconciles it the same way a guest poll would.
func (h *DevHandler) SimulatePayment(c echo.Context) error {
	ctx := c.Request().Context()
	var req simulateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := h.Bookings.ByReference(ctx, c.Param("referenceCode"))
	if err != nil {
		return err
	}
	if r.CheckoutSessionID == nil {
		return apperr.Conflict("booking has no checkout session")
	}
	var ok bool
	switch strings.ToLower(strings.TrimSpace(req.Status)) {
	case "paid", "":
		ok = h.Sandbox.MarkPaid(*r.CheckoutSessionID)
	case "failed":
		ok = h.Sandbox.MarkFailed(*r.CheckoutSessionID)
	case "expired":
		ok = h.Sandbox.Expire(*r.CheckoutSessionID)
	default:
		verr := apperr.Validation("invalid status")
		verr.AddField("status", "must be paid, failed or expired")
		return verr
	}
	if !ok {
		return apperr.NotFound("checkout session not found in sandbox")
	}
	r, err = h.Reconciler.Verify(ctx, r.ReferenceCode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"status":  r.Status.PublicStatus(),
		"booking": toBookingDTO(r, model.Room{}, h.Bookings.Location()),
	})
}

// PendingBookings lists every booking still waiting for payment.
func (h *DevHandler) PendingBookings(c echo.Context) error {
	list, err := h.Store.ListReservations(c.Request().Context(), repository.ReservationFilter{Status: model.StatusPendingPayment})
	if err != nil {
		return apperr.Internal("list pending bookings", err)
	}
	out := make([]bookingDTO, 0, len(list))
	for _, r := range list {
		out = append(out, toBookingDTO(r, model.Room{}, h.Bookings.Location()))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(out), "bookings": out})
}
