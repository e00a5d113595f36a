package model

import (
	"strings"
	"time"
)

// RoomType is the marketing category a physical room belongs to.  Rates
// are defined per type, not per room.
type RoomType string

const (
	RoomTypeValue    RoomType = "Value"
	RoomTypeStandard RoomType = "Standard"
	RoomTypeDeluxe   RoomType = "Deluxe"
	RoomTypeSuperior RoomType = "Superior"
	RoomTypeSuite    RoomType = "Suite"
)

// RoomTypes lists every known type in display order.
var RoomTypes = []RoomType{RoomTypeValue, RoomTypeStandard, RoomTypeDeluxe, RoomTypeSuperior, RoomTypeSuite}

var slugToType = map[string]RoomType{
	"value-room":    RoomTypeValue,
	"standard-room": RoomTypeStandard,
	"deluxe-room":   RoomTypeDeluxe,
	"superior-room": RoomTypeSuperior,
	"suite-room":    RoomTypeSuite,
}

// RoomTypeFromSlug maps a generic slug such as "deluxe-room" (or a bare
// "deluxe") to its RoomType.  The second return value is false when the
// slug does not name a known type.
func RoomTypeFromSlug(slug string) (RoomType, bool) {
	s := strings.ToLower(strings.TrimSpace(slug))
	if t, ok := slugToType[s]; ok {
		return t, true
	}
	s = strings.TrimSuffix(s, "-room")
	for _, t := range RoomTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// Slug returns the generic slug used by the public catalog.
func (t RoomType) Slug() string { return strings.ToLower(string(t)) + "-room" }

// Valid reports whether t is one of the known room types.
func (t RoomType) Valid() bool {
	for _, k := range RoomTypes {
		if k == t {
			return true
		}
	}
	return false
}

// RoomStatus is the housekeeping state of a physical room.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "Available"
	RoomOccupied    RoomStatus = "Occupied"
	RoomDirty       RoomStatus = "Dirty"
	RoomMaintenance RoomStatus = "Maintenance"
)

// Bookable reports whether a room in this status may be offered for a
// booking at all.  Dirty and Maintenance rooms are excluded regardless of
// the requested date.
func (s RoomStatus) Bookable() bool { return s == RoomAvailable || s == RoomOccupied }

// Valid reports whether s is a known room status.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomAvailable, RoomOccupied, RoomDirty, RoomMaintenance:
		return true
	}
	return false
}

// SupportedDurations are the stay lengths, in hours, that can be sold.
var SupportedDurations = []int{3, 6, 12, 24}

// ValidDuration reports whether hours is a sellable stay length.
func ValidDuration(hours int) bool {
	for _, d := range SupportedDurations {
		if d == hours {
			return true
		}
	}
	return false
}

// RateCard maps a stay duration in hours to its price in centavos.
type RateCard map[int]int64

// RoomTypeInfo is the catalog entry for a room type.
//
// Fields:
//
//	Type        – the room type key.
//	Name        – display name (e.g. "Deluxe Room").
//	Tagline     – short marketing line.
//	Description – long description.
//	Capacity    – human readable capacity (e.g. "2 Adults").
//	Size        – human readable floor area.
//	Rates       – per-duration prices in centavos.
type RoomTypeInfo struct {
	Type        RoomType // room_types.code
	Name        string   // room_types.name
	Tagline     string   // room_types.tagline
	Description string   // room_types.description
	Capacity    string   // room_types.capacity
	Size        string   // room_types.size
	Rates       RateCard // room_types.rate_{3,6,12,24}h_cents
}

// Room is one physical, bookable unit.  A room may carry a soft lock
// (LockExpiresAt/LockedBy) placed by the front desk while a walk-in guest
// is being attended to; availability searches skip rooms with an
// unexpired lock unless the caller presents the lock token.
//
// Fields:
//
//	ID            – primary key identifier.
//	Number        – display number (e.g. "201S").
//	Type          – room type.
//	Name          – display name (e.g. "Standard Room 201S").
//	Status        – housekeeping status.
//	Rates         – rate card of the room's type.
//	LockExpiresAt – soft lock expiry (nil when unlocked).
//	LockedBy      – token of the lock holder (nil when unlocked).
type Room struct {
	ID            uint64     // rooms.id
	Number        string     // rooms.room_number
	Type          RoomType   // rooms.room_type
	Name          string     // rooms.name
	Status        RoomStatus // rooms.status
	Rates         RateCard   // joined from room_types
	LockExpiresAt *time.Time // rooms.lock_expires_at (nullable)
	LockedBy      *string    // rooms.locked_by (nullable)
}

// SoftLocked reports whether the room is held by someone other than the
// holder of token at instant now.
func (r Room) SoftLocked(now time.Time, token string) bool {
	if r.LockExpiresAt == nil || !r.LockExpiresAt.After(now) {
		return false
	}
	if token != "" && r.LockedBy != nil && *r.LockedBy == token {
		return false
	}
	return true
}

// DisplayName falls back to "<Type> Room <Number>" when no name is stored.
func (r Room) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.Type) + " Room " + r.Number
}
