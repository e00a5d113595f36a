package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/pricing"
)

// maxWebhookBody caps the raw webhook body read for signature checks.
const maxWebhookBody = 1 << 20

// PaymentHandler serves checkout creation, payment webhooks and booking
// lookups.
type PaymentHandler struct {
	Bookings   *booking.Service
	Reconciler *payment.Reconciler
	Log        *logrus.Logger
}

func NewPaymentHandler(b *booking.Service, r *payment.Reconciler, log *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{Bookings: b, Reconciler: r, Log: log}
}

type guestInfo struct {
	GuestID   flexID   `json:"guestId"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Adults    flexInt  `json:"adults"`
	Children  flexInt  `json:"children"`
	ChildAges flexAges `json:"childAges"`
}

// party applies the lenient defaults of the booking form: one adult and no
// children when the counts are missing.
func (g *guestInfo) party() booking.Party {
	p := booking.Party{Adults: 1}
	if g == nil {
		return p
	}
	if g.Adults.Set {
		p.Adults = g.Adults.Value
	}
	if g.Children.Set {
		p.Children = g.Children.Value
	}
	p.ChildAges = []int(g.ChildAges)
	return p
}

func (g *guestInfo) billing() *payment.Billing {
	if g == nil {
		return nil
	}
	b := payment.Billing{
		Name:  strings.TrimSpace(g.FirstName + " " + g.LastName),
		Email: strings.TrimSpace(g.Email),
		Phone: strings.TrimSpace(g.Phone),
	}
	if b == (payment.Billing{}) {
		return nil
	}
	return &b
}

type checkoutReq struct {
	RoomSlug       string     `json:"roomSlug"`
	RoomID         flexID     `json:"roomId"`
	SelectedRoomID flexID     `json:"selectedRoomId"`
	CheckInDate    string     `json:"checkInDate"`
	CheckInTime    string     `json:"checkInTime"`
	Duration       flexInt    `json:"duration"`
	TotalAmount    flexAmount `json:"totalAmount"`
	LockToken      string     `json:"lockToken"`
	GuestInfo      *guestInfo `json:"guestInfo"`
}

// CreateCheckout books a room and returns the gateway checkout URL.
func (h *PaymentHandler) CreateCheckout(c echo.Context) error {
	var req checkoutReq
	if err := bind(c, &req); err != nil {
		return err
	}
	var roomType model.RoomType
	if slug := strings.TrimSpace(req.RoomSlug); slug != "" {
		t, ok := model.RoomTypeFromSlug(slug)
		if !ok {
			verr := apperr.Validation("unknown room type")
			verr.AddField("roomSlug", "is not a known room type")
			return verr
		}
		roomType = t
	}
	roomID := req.RoomID
	if !roomID.Set {
		roomID = req.SelectedRoomID
	}
	checkIn, err := parseCheckIn(req.CheckInDate, req.CheckInTime, h.Bookings.Location())
	if err != nil {
		return err
	}
	var guestID *uint64
	if req.GuestInfo != nil {
		guestID = req.GuestInfo.GuestID.ptr()
	}

	b, err := h.Bookings.Create(c.Request().Context(), caller(c), booking.CreateRequest{
		RoomType:         roomType,
		RoomID:           roomID.Value,
		CheckIn:          checkIn,
		DurationHours:    req.Duration.Value,
		Party:            req.GuestInfo.party(),
		ClientTotalCents: req.TotalAmount.ptr(),
		GuestID:          guestID,
		Billing:          req.GuestInfo.billing(),
		LockToken:        strings.TrimSpace(req.LockToken),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":       true,
		"checkoutUrl":   b.CheckoutURL,
		"referenceCode": b.Reservation.ReferenceCode,
		"totalCents":    b.Quote.TotalCents,
		"totalDisplay":  pricing.FormatPHP(b.Quote.TotalCents),
		"breakdown":     b.Quote,
		"booking":       toBookingDTO(b.Reservation, b.Room, h.Bookings.Location()),
	})
}

// Webhook verifies and applies a gateway event.  The raw body is read
// before any decoding because the signature covers its exact bytes.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return apperr.Validation("unreadable body")
	}
	ack, err := h.Reconciler.HandleWebhook(c.Request().Context(), body, c.Request().Header.Get(payment.SignatureHeader))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ack)
}

// Verify polls the gateway for a pending booking and reports its public
// status: pending, confirmed or cancelled.
func (h *PaymentHandler) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	r, err := h.Reconciler.Verify(ctx, c.Param("referenceCode"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"status":  r.Status.PublicStatus(),
		"booking": toBookingDTO(r, h.roomOf(ctx, r.RoomID), h.Bookings.Location()),
	})
}

// Booking returns a booking by reference code without touching the
// gateway.
func (h *PaymentHandler) Booking(c echo.Context) error {
	ctx := c.Request().Context()
	r, err := h.Bookings.ByReference(ctx, c.Param("referenceCode"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"booking": toBookingDTO(r, h.roomOf(ctx, r.RoomID), h.Bookings.Location()),
	})
}

// MyBookings lists the signed-in guest's bookings.
func (h *PaymentHandler) MyBookings(c echo.Context) error {
	ctx := c.Request().Context()
	list, err := h.Bookings.MyBookings(ctx, caller(c))
	if err != nil {
		return err
	}
	rooms := map[uint64]model.Room{}
	out := make([]bookingDTO, 0, len(list))
	for _, r := range list {
		room, ok := rooms[r.RoomID]
		if !ok {
			room = h.roomOf(ctx, r.RoomID)
			rooms[r.RoomID] = room
		}
		out = append(out, toBookingDTO(r, room, h.Bookings.Location()))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "bookings": out})
}

// CleanupStale cancels abandoned checkouts on demand.
func (h *PaymentHandler) CleanupStale(c echo.Context) error {
	n, err := h.Bookings.SweepStale(c.Request().Context())
	if err != nil {
		return err
	}
	msg := "No stale bookings to clean up"
	if n > 0 {
		msg = "Cancelled abandoned bookings"
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": msg, "cancelled": n})
}

// roomOf is best effort: a missing room only drops the room fields from
// the response.
func (h *PaymentHandler) roomOf(ctx context.Context, id uint64) model.Room {
	room, err := h.Bookings.Room(ctx, id)
	if err != nil {
		h.Log.WithError(err).WithField("room_id", id).Warn("room lookup failed")
		return model.Room{}
	}
	return room
}
