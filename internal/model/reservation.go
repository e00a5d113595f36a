package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.  The string
// values are persisted as-is.
type ReservationStatus string

const (
	StatusPendingPayment ReservationStatus = "Pending_Payment"
	StatusConfirmed      ReservationStatus = "Confirmed"
	StatusCheckedIn      ReservationStatus = "Checked_In"
	StatusCompleted      ReservationStatus = "Completed"
	StatusCancelled      ReservationStatus = "Cancelled"
)

var validNext = map[ReservationStatus]map[ReservationStatus]bool{
	StatusPendingPayment: {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:      {StatusCheckedIn: true, StatusCancelled: true},
	StatusCheckedIn:      {StatusCompleted: true},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// CanTransition reports whether a reservation may move from one status to
// another.
func CanTransition(from, to ReservationStatus) bool {
	return validNext[from][to]
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Blocking reports whether a reservation in this status holds its room
// for the booked window.
func (s ReservationStatus) Blocking() bool {
	return s == StatusPendingPayment || s == StatusConfirmed || s == StatusCheckedIn
}

// Settled reports whether the reservation counts as a sale: paid for, or
// past payment.
func (s ReservationStatus) Settled() bool {
	return s == StatusConfirmed || s == StatusCheckedIn || s == StatusCompleted
}

// Terminal reports whether no further transitions are possible.
func (s ReservationStatus) Terminal() bool {
	return len(validNext[s]) == 0
}

// BlockingStatuses lists the statuses that count toward room conflicts.
var BlockingStatuses = []ReservationStatus{StatusPendingPayment, StatusConfirmed, StatusCheckedIn}

// PublicStatus collapses the lifecycle status into the three values shown
// to guests polling for payment: pending, confirmed or cancelled.
func (s ReservationStatus) PublicStatus() string {
	switch s {
	case StatusPendingPayment:
		return "pending"
	case StatusConfirmed, StatusCheckedIn, StatusCompleted:
		return "confirmed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Source records which channel created a reservation.
type Source string

const (
	SourceWeb    Source = "Web"
	SourceWalkIn Source = "Walk_in"
)

// Reservation is a booking of one physical room for a fixed window.
// TotalCents is always computed server-side.  GuestID is nil only for
// walk-in reservations created by the front desk.
//
// Fields:
//
//	ID                – primary key identifier.
//	ReferenceCode     – globally unique human readable code.
//	GuestID           – guest user (nullable for walk-ins).
//	RoomID            – assigned physical room.
//	CheckoutSessionID – payment gateway session (nullable until created).
//	CheckIn           – check-in instant (UTC).
//	CheckOut          – check-out instant, CheckIn + DurationHours.
//	DurationHours     – 3, 6, 12 or 24.
//	Adults            – 1 to 4.
//	Children          – 0 to 2.
//	ChildAges         – one age per child.
//	Source            – Web or Walk_in.
//	Status            – lifecycle status.
//	TotalCents        – authoritative total in centavos.
//	CreatedAt         – creation timestamp.
//	UpdatedAt         – last update timestamp.
type Reservation struct {
	ID                uint64            // reservations.id
	ReferenceCode     string            // reservations.reference_code
	GuestID           *uint64           // reservations.guest_id (nullable)
	RoomID            uint64            // reservations.room_id
	CheckoutSessionID *string           // reservations.checkout_session_id (nullable)
	CheckIn           time.Time         // reservations.check_in
	CheckOut          time.Time         // reservations.check_out
	DurationHours     int               // reservations.duration_hours
	Adults            int               // reservations.adults
	Children          int               // reservations.children
	ChildAges         []int             // reservations.child_ages (JSON)
	Source            Source            // reservations.source
	Status            ReservationStatus // reservations.status
	TotalCents        int64             // reservations.total_cents
	CreatedAt         time.Time         // reservations.created_at
	UpdatedAt         time.Time         // reservations.updated_at
}

// Duration returns the booked stay length.
func (r Reservation) Duration() time.Duration {
	return time.Duration(r.DurationHours) * time.Hour
}
