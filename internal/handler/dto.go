package handler

import (
	"strconv"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/pricing"
)

type bookingDTO struct {
	ID            uint64    `json:"id"`
	ReferenceCode string    `json:"referenceCode"`
	RoomID        uint64    `json:"roomId"`
	RoomNumber    string    `json:"roomNumber,omitempty"`
	RoomName      string    `json:"roomName,omitempty"`
	RoomType      string    `json:"roomType,omitempty"`
	GuestID       *uint64   `json:"guestId"`
	CheckInTime   time.Time `json:"checkInTime"`
	CheckOutTime  time.Time `json:"checkOutTime"`
	DurationHours int       `json:"durationHours"`
	Adults        int       `json:"adults"`
	Children      int       `json:"children"`
	ChildAges     []int     `json:"childAges"`
	Source        string    `json:"source"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	TotalCents    int64     `json:"totalCents"`
	TotalDisplay  string    `json:"totalDisplay"`
	CreatedAt     time.Time `json:"createdAt"`
}

// toBookingDTO renders a reservation.  Times are shown in loc; room may be
// the zero value when unknown.
func toBookingDTO(r model.Reservation, room model.Room, loc *time.Location) bookingDTO {
	ages := r.ChildAges
	if ages == nil {
		ages = []int{}
	}
	d := bookingDTO{
		ID:            r.ID,
		ReferenceCode: r.ReferenceCode,
		RoomID:        r.RoomID,
		GuestID:       r.GuestID,
		CheckInTime:   r.CheckIn.In(loc),
		CheckOutTime:  r.CheckOut.In(loc),
		DurationHours: r.DurationHours,
		Adults:        r.Adults,
		Children:      r.Children,
		ChildAges:     ages,
		Source:        string(r.Source),
		Status:        string(r.Status),
		PaymentStatus: paymentStatus(r.Status),
		TotalCents:    r.TotalCents,
		TotalDisplay:  pricing.FormatPHP(r.TotalCents),
		CreatedAt:     r.CreatedAt.In(loc),
	}
	if room.ID != 0 {
		d.RoomNumber = room.Number
		d.RoomName = room.DisplayName()
		d.RoomType = string(room.Type)
	}
	return d
}

func paymentStatus(s model.ReservationStatus) string {
	switch s {
	case model.StatusConfirmed, model.StatusCheckedIn, model.StatusCompleted:
		return "paid"
	case model.StatusCancelled:
		return "cancelled"
	}
	return "pending"
}

// ratesDTO keys a rate card by "3h", "6h" and so on.
func ratesDTO(rc model.RateCard) map[string]int64 {
	out := make(map[string]int64, len(rc))
	for h, cents := range rc {
		out[strconv.Itoa(h)+"h"] = cents
	}
	return out
}

type roomTypeDTO struct {
	Slug        string           `json:"slug"`
	Type        string           `json:"type"`
	Name        string           `json:"name"`
	Tagline     string           `json:"tagline"`
	Description string           `json:"description"`
	Capacity    string           `json:"capacity"`
	Size        string           `json:"size"`
	Rates       map[string]int64 `json:"rates"`
	PriceFrom   string           `json:"priceFrom"`
}

func toRoomTypeDTO(info model.RoomTypeInfo) roomTypeDTO {
	d := roomTypeDTO{
		Slug:        info.Type.Slug(),
		Type:        string(info.Type),
		Name:        info.Name,
		Tagline:     info.Tagline,
		Description: info.Description,
		Capacity:    info.Capacity,
		Size:        info.Size,
		Rates:       ratesDTO(info.Rates),
	}
	if cents, ok := info.Rates[model.SupportedDurations[0]]; ok {
		d.PriceFrom = pricing.FormatPHP(cents)
	}
	return d
}
