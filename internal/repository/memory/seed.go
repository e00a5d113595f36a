package memory

import (
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// DefaultRoomTypes mirrors the catalog rows seeded into MySQL.
var DefaultRoomTypes = []model.RoomTypeInfo{
	{Type: model.RoomTypeValue, Name: "Value Room", Tagline: "Smart stay for short breaks", Capacity: "2 Adults", Size: "14 sqm",
		Rates: model.RateCard{3: 50000, 6: 80000, 12: 120000, 24: 180000}},
	{Type: model.RoomTypeStandard, Name: "Standard Room", Tagline: "Comfort for every trip", Capacity: "2 Adults", Size: "18 sqm",
		Rates: model.RateCard{3: 70000, 6: 110000, 12: 160000, 24: 240000}},
	{Type: model.RoomTypeDeluxe, Name: "Deluxe Room", Tagline: "Extra space and a city view", Capacity: "3 Adults", Size: "24 sqm",
		Rates: model.RateCard{3: 90000, 6: 140000, 12: 200000, 24: 300000}},
	{Type: model.RoomTypeSuperior, Name: "Superior Room", Tagline: "Upgraded finishes and a lounge", Capacity: "3 Adults", Size: "28 sqm",
		Rates: model.RateCard{3: 110000, 6: 170000, 12: 250000, 24: 380000}},
	{Type: model.RoomTypeSuite, Name: "Suite", Tagline: "Separate living area", Capacity: "4 Adults", Size: "40 sqm",
		Rates: model.RateCard{3: 150000, 6: 230000, 12: 340000, 24: 500000}},
}

var defaultRooms = []struct {
	number string
	t      model.RoomType
}{
	{"101V", model.RoomTypeValue},
	{"102V", model.RoomTypeValue},
	{"201S", model.RoomTypeStandard},
	{"202S", model.RoomTypeStandard},
	{"203S", model.RoomTypeStandard},
	{"301D", model.RoomTypeDeluxe},
	{"302D", model.RoomTypeDeluxe},
	{"401P", model.RoomTypeSuperior},
	{"501S", model.RoomTypeSuite},
}

// NewSeeded returns a store holding the default catalog and inventory.
func NewSeeded(lockWait time.Duration) *Store {
	s := New(lockWait)
	for _, info := range DefaultRoomTypes {
		s.AddRoomType(info)
	}
	for _, r := range defaultRooms {
		s.AddRoom(r.number, r.t)
	}
	return s
}
