package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/availability"
	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/pricing"
)

// RoomHandler serves the public catalog and availability search.
type RoomHandler struct {
	Bookings *booking.Service
}

func NewRoomHandler(b *booking.Service) *RoomHandler { return &RoomHandler{Bookings: b} }

// List returns one entry per room type.
func (h *RoomHandler) List(c echo.Context) error {
	types, err := h.Bookings.RoomTypes(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]roomTypeDTO, 0, len(types))
	for _, t := range types {
		out = append(out, toRoomTypeDTO(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "rooms": out})
}

// Get returns the room type named by :slug.
func (h *RoomHandler) Get(c echo.Context) error {
	info, err := h.Bookings.RoomType(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "room": toRoomTypeDTO(info)})
}

type roomDTO struct {
	ID     uint64           `json:"id"`
	Number string           `json:"number"`
	Name   string           `json:"name"`
	Type   model.RoomType   `json:"type"`
	Slug   string           `json:"slug"`
	Status model.RoomStatus `json:"status"`
	Rates  map[string]int64 `json:"rates"`
}

// Available lists the rooms free right now, cheapest first.
func (h *RoomHandler) Available(c echo.Context) error {
	rooms, err := h.Bookings.AvailableRooms(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]roomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomDTO{
			ID:     r.ID,
			Number: r.Number,
			Name:   r.DisplayName(),
			Type:   r.Type,
			Slug:   r.Type.Slug(),
			Status: r.Status,
			Rates:  ratesDTO(r.Rates),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(out), "rooms": out})
}

// CheckAvailability answers
// GET /api/rooms/:slug/check-availability?checkInDate=&checkInTime=&duration=
// with every free room of the type and the base price of the stay.
func (h *RoomHandler) CheckAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	info, err := h.Bookings.RoomType(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	checkIn, err := parseCheckIn(c.QueryParam("checkInDate"), c.QueryParam("checkInTime"), h.Bookings.Location())
	if err != nil {
		return err
	}
	hours, err := parseHours(c.QueryParam("duration"))
	if err != nil || !model.ValidDuration(hours) {
		verr := apperr.Validation("invalid duration")
		verr.AddField("duration", "must be one of 3h, 6h, 12h or 24h")
		return verr
	}
	free, err := h.Bookings.CheckAvailability(ctx, info.Type, checkIn, hours)
	if err != nil {
		return err
	}
	if free == nil {
		free = []availability.Candidate{}
	}
	resp := echo.Map{
		"success":      true,
		"available":    len(free) > 0,
		"count":        len(free),
		"rooms":        free,
		"checkInTime":  checkIn,
		"checkOutTime": availability.Query{CheckIn: checkIn, DurationHours: hours}.CheckOut(),
	}
	if q, err := pricing.Compute(info.Rates, hours, nil); err == nil {
		resp["basePriceCents"] = q.BaseCents
		resp["basePrice"] = pricing.FormatPHP(q.BaseCents)
	}
	return c.JSON(http.StatusOK, resp)
}
