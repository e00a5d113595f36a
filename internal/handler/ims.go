package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/pricing"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Booking list bounds for the dashboard.
const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// IMSHandler serves the front-desk dashboard.  Every route requires a
// staff token.
type IMSHandler struct {
	Bookings *booking.Service
	Users    repository.UserStore
	Log      *logrus.Logger
}

func NewIMSHandler(b *booking.Service, users repository.UserStore, log *logrus.Logger) *IMSHandler {
	return &IMSHandler{Bookings: b, Users: users, Log: log}
}

type roomTileDTO struct {
	ID        uint64           `json:"id"`
	Number    string           `json:"number"`
	Name      string           `json:"name"`
	Type      model.RoomType   `json:"type"`
	Status    model.RoomStatus `json:"status"`
	Rates     map[string]int64 `json:"rates"`
	Held      bool             `json:"held"`
	HeldUntil *time.Time       `json:"heldUntil,omitempty"`
	Upcoming  int              `json:"upcoming"`
	Guest     string           `json:"guest,omitempty"`
	BookingID uint64           `json:"bookingId,omitempty"`
	Reference string           `json:"referenceCode,omitempty"`
	CheckIn   *time.Time       `json:"checkIn,omitempty"`
	Duration  string           `json:"duration,omitempty"`
	TimeLeft  string           `json:"timeLeft,omitempty"`
	Urgent    bool             `json:"urgent,omitempty"`
}

// Rooms is the room board: every room, its hold and its current stay.
func (h *IMSHandler) Rooms(c echo.Context) error {
	ctx := c.Request().Context()
	board, err := h.Bookings.RoomBoard(ctx)
	if err != nil {
		return err
	}
	loc := h.Bookings.Location()
	out := make([]roomTileDTO, 0, len(board))
	for _, v := range board {
		t := roomTileDTO{
			ID:       v.Room.ID,
			Number:   v.Room.Number,
			Name:     v.Room.DisplayName(),
			Type:     v.Room.Type,
			Status:   v.Room.Status,
			Rates:    ratesDTO(v.Room.Rates),
			Held:     v.Held,
			Upcoming: v.Upcoming,
		}
		if v.Held {
			t.HeldUntil = v.Room.LockExpiresAt
		}
		if s := v.Stay; s != nil {
			in := s.CheckIn.In(loc)
			t.Guest = h.guestLabel(ctx, s.GuestID)
			t.BookingID = s.ID
			t.Reference = s.ReferenceCode
			t.CheckIn = &in
			t.Duration = fmt.Sprintf("%dh", s.DurationHours)
			t.TimeLeft = formatTimeLeft(v.TimeLeft)
			t.Urgent = v.TimeLeft <= 10*time.Minute
		}
		out = append(out, t)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "rooms": out})
}

// guestLabel renders "J. Cruz" for registered guests and "Walk-In"
// otherwise.
func (h *IMSHandler) guestLabel(ctx context.Context, id *uint64) string {
	if id == nil || h.Users == nil {
		return "Walk-In"
	}
	u, err := h.Users.UserByID(ctx, *id)
	if err != nil || u.FirstName == "" {
		return "Walk-In"
	}
	return string([]rune(u.FirstName)[:1]) + ". " + u.LastName
}

func formatTimeLeft(d time.Duration) string {
	if d <= 0 {
		return "Overdue"
	}
	mins := int(d / time.Minute)
	if mins >= 60 {
		return fmt.Sprintf("%dh %dm", mins/60, mins%60)
	}
	return fmt.Sprintf("%dm", mins)
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateRoomStatus sets a room's housekeeping status.
func (h *IMSHandler) UpdateRoomStatus(c echo.Context) error {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	room, err := h.Bookings.UpdateRoomStatus(c.Request().Context(), caller(c), id, model.RoomStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": fmt.Sprintf("Room %s is now %s", room.Number, room.Status),
		"room":    echo.Map{"id": room.ID, "number": room.Number, "status": room.Status},
	})
}

type holdReq struct {
	Minutes int    `json:"minutes"`
	Token   string `json:"token"`
}

// HoldRoom soft-locks a room while a walk-in is attended to.
func (h *IMSHandler) HoldRoom(c echo.Context) error {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	var req holdReq
	if err := bind(c, &req); err != nil {
		return err
	}
	hold, err := h.Bookings.HoldRoom(c.Request().Context(), caller(c), id, req.Minutes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "hold": hold})
}

// ReleaseHold drops a hold.  The token comes from the body or ?token=.
func (h *IMSHandler) ReleaseHold(c echo.Context) error {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	var req holdReq
	if err := bind(c, &req); err != nil {
		return err
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = strings.TrimSpace(c.QueryParam("token"))
	}
	if token == "" {
		verr := apperr.Validation("token is required")
		verr.AddField("token", "is required")
		return verr
	}
	if err := h.Bookings.ReleaseHold(c.Request().Context(), caller(c), id, token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBookings lists bookings, optionally filtered by ?status= and bounded by
// ?limit=.
func (h *IMSHandler) ListBookings(c echo.Context) error {
	ctx := c.Request().Context()
	f := repository.ReservationFilter{
		Status: model.ReservationStatus(strings.TrimSpace(c.QueryParam("status"))),
		Limit:  defaultListLimit,
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			verr := apperr.Validation("invalid limit")
			verr.AddField("limit", "must be a positive integer")
			return verr
		}
		f.Limit = min(n, maxListLimit)
	}
	list, err := h.Bookings.ListBookings(ctx, caller(c), f)
	if err != nil {
		return err
	}
	rooms := map[uint64]model.Room{}
	out := make([]bookingDTO, 0, len(list))
	for _, r := range list {
		room, ok := rooms[r.RoomID]
		if !ok {
			room, _ = h.Bookings.Room(ctx, r.RoomID)
			rooms[r.RoomID] = room
		}
		out = append(out, toBookingDTO(r, room, h.Bookings.Location()))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "bookings": out})
}

// UpdateBookingStatus applies a front-desk transition.
func (h *IMSHandler) UpdateBookingStatus(c echo.Context) error {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := h.Bookings.UpdateStatus(c.Request().Context(), caller(c), id, model.ReservationStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"booking": toBookingDTO(r, model.Room{}, h.Bookings.Location()),
	})
}

type walkInReq struct {
	RoomID      flexID     `json:"roomId"`
	Duration    flexInt    `json:"duration"`
	Adults      flexInt    `json:"adults"`
	Children    flexInt    `json:"children"`
	ChildAges   flexAges   `json:"childAges"`
	GuestID     flexID     `json:"guestId"`
	TotalAmount flexAmount `json:"totalAmount"`
	LockToken   string     `json:"lockToken"`
}

// WalkIn books and checks in a guest at the desk.
func (h *IMSHandler) WalkIn(c echo.Context) error {
	var req walkInReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if !req.RoomID.Set {
		verr := apperr.Validation("roomId is required")
		verr.AddField("roomId", "is required")
		return verr
	}
	party := booking.Party{Adults: 1, ChildAges: []int(req.ChildAges)}
	if req.Adults.Set {
		party.Adults = req.Adults.Value
	}
	if req.Children.Set {
		party.Children = req.Children.Value
	}
	b, err := h.Bookings.CreateWalkIn(c.Request().Context(), caller(c), booking.WalkInRequest{
		RoomID:           req.RoomID.Value,
		DurationHours:    req.Duration.Value,
		Party:            party,
		GuestID:          req.GuestID.ptr(),
		ClientTotalCents: req.TotalAmount.ptr(),
		LockToken:        strings.TrimSpace(req.LockToken),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":       true,
		"referenceCode": b.Reservation.ReferenceCode,
		"totalDisplay":  pricing.FormatPHP(b.Quote.TotalCents),
		"breakdown":     b.Quote,
		"booking":       toBookingDTO(b.Reservation, b.Room, h.Bookings.Location()),
	})
}

// Stats is the dashboard summary.
func (h *IMSHandler) Stats(c echo.Context) error {
	st, err := h.Bookings.Stats(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"stats":        st,
		"todayRevenue": pricing.FormatPHP(st.TodayRevenueCents),
	})
}

// CurrentShift shows today's takings so the desk can count the drawer.
func (h *IMSHandler) CurrentShift(c echo.Context) error {
	sh, err := h.Bookings.CurrentShift(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"shift":   sh,
		"display": echo.Map{
			"initialCash": pricing.FormatPHP(sh.InitialCashCents),
			"cashSales":   pricing.FormatPHP(sh.CashSalesCents),
			"onlineSales": pricing.FormatPHP(sh.OnlineSalesCents),
			"systemCash":  pricing.FormatPHP(sh.SystemCashCents),
		},
	})
}

type shiftReq struct {
	PhysicalCash flexAmount `json:"physicalCash"`
	Expenses     flexAmount `json:"expenses"`
	Remarks      string     `json:"remarks"`
}

// SubmitShift closes the shift with the counted cash and any expenses.
func (h *IMSHandler) SubmitShift(c echo.Context) error {
	var req shiftReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if !req.PhysicalCash.Set {
		verr := apperr.Validation("physicalCash is required")
		verr.AddField("physicalCash", "is required")
		return verr
	}
	rep, err := h.Bookings.SubmitShift(c.Request().Context(), caller(c), booking.ShiftSubmission{
		PhysicalCashCents: req.PhysicalCash.Cents,
		ExpensesCents:     req.Expenses.Cents,
		Remarks:           strings.TrimSpace(req.Remarks),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":         true,
		"message":         "Shift report submitted",
		"reportId":        rep.ID,
		"varianceCents":   rep.VarianceCents,
		"variance":        pricing.FormatPHP(rep.VarianceCents),
		"systemCashCents": rep.SystemCashCents,
	})
}

type staffDTO struct {
	ID        uint64     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Staff lists every non-guest account.
func (h *IMSHandler) Staff(c echo.Context) error {
	list, err := h.Users.ListStaff(c.Request().Context())
	if err != nil {
		return apperr.Internal("list staff", err)
	}
	out := make([]staffDTO, 0, len(list))
	for _, u := range list {
		out = append(out, staffDTO{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Phone:     u.Phone,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "staff": out})
}
