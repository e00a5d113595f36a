// Package queue defines the booking lifecycle events exchanged over the
// message broker and the consumers that turn them into audit log lines.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// Event types, one per lifecycle transition.
const (
	EventCreated    = "booking.created"
	EventConfirmed  = "booking.confirmed"
	EventCancelled  = "booking.cancelled"
	EventCheckedIn  = "booking.checked_in"
	EventCompleted  = "booking.completed"
	EventWalkIn     = "booking.walk_in"
	EventRoomStatus = "room.status_changed"
)

// EventForStatus maps a reservation status reached by a transition to its
// event type.
func EventForStatus(s model.ReservationStatus) string {
	switch s {
	case model.StatusConfirmed:
		return EventConfirmed
	case model.StatusCancelled:
		return EventCancelled
	case model.StatusCheckedIn:
		return EventCheckedIn
	case model.StatusCompleted:
		return EventCompleted
	}
	return EventCreated
}

// BookingEvent is published on every reservation transition.  It carries
// enough for downstream consumers to log or notify without querying the
// primary database.
type BookingEvent struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	OccurredAt    string `json:"occurred_at"`
	ReservationID uint64 `json:"reservation_id"`
	ReferenceCode string `json:"reference_code"`
	RoomID        uint64 `json:"room_id"`
	GuestID       uint64 `json:"guest_id,omitempty"`
	Status        string `json:"status"`
	PrevStatus    string `json:"prev_status,omitempty"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	TotalCents    int64  `json:"total_cents"`
	Reason        string `json:"reason,omitempty"`
}

// NewBookingEvent builds an event for r with a fresh id.
func NewBookingEvent(typ string, r model.Reservation, prev model.ReservationStatus, at time.Time) BookingEvent {
	ev := BookingEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		OccurredAt:    at.UTC().Format(time.RFC3339),
		ReservationID: r.ID,
		ReferenceCode: r.ReferenceCode,
		RoomID:        r.RoomID,
		Status:        string(r.Status),
		PrevStatus:    string(prev),
		CheckIn:       r.CheckIn.UTC().Format(time.RFC3339),
		CheckOut:      r.CheckOut.UTC().Format(time.RFC3339),
		TotalCents:    r.TotalCents,
	}
	if r.GuestID != nil {
		ev.GuestID = *r.GuestID
	}
	return ev
}

// Publisher sends booking events to a bus.  Publish failures must never
// fail the operation that produced the event; callers log and move on.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
	Close() error
}

// Nop discards events.  Used when no bus is configured.
type Nop struct{}

func (Nop) Publish(context.Context, BookingEvent) error { return nil }
func (Nop) Close() error                                { return nil }

// Recorder keeps published events in memory.  Tests use it to assert on
// emitted transitions.
type Recorder struct {
	ch chan BookingEvent
}

// NewRecorder buffers up to n events.
func NewRecorder(n int) *Recorder { return &Recorder{ch: make(chan BookingEvent, n)} }

func (r *Recorder) Publish(_ context.Context, ev BookingEvent) error {
	select {
	case r.ch <- ev:
	default:
	}
	return nil
}

func (r *Recorder) Close() error { return nil }

// Drain returns the events recorded so far.
func (r *Recorder) Drain() []BookingEvent {
	var out []BookingEvent
	for {
		select {
		case ev := <-r.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// NewRoomEvent builds a room.status_changed event.
func NewRoomEvent(roomID uint64, status, prev model.RoomStatus, at time.Time) BookingEvent {
	return BookingEvent{
		EventID:    uuid.NewString(),
		Type:       EventRoomStatus,
		OccurredAt: at.UTC().Format(time.RFC3339),
		RoomID:     roomID,
		Status:     string(status),
		PrevStatus: string(prev),
	}
}
