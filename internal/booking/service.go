// Package booking owns the reservation lifecycle: race-safe creation of
// web and walk-in bookings, front-desk status transitions, soft holds and
// the read models served to guests and staff.
package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/availability"
	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/sweeper"
)

const tracerName = "github.com/iliyamo/hotel-reservation/internal/booking"

// Caller is the authenticated identity behind a request.  UserID is 0
// for anonymous callers.
type Caller struct {
	UserID uint64
	Role   model.Role
}

// Deps wires a Service.  Events, Sweeper, Now, Location and Tracer are
// optional.
type Deps struct {
	Store       repository.Store
	Gateway     payment.Gateway
	Sweeper     *sweeper.Sweeper
	Events      queue.Publisher
	Log         *logrus.Logger
	Booking     config.BookingConfig
	Payment     config.PaymentConfig
	FrontendURL string
	Location    *time.Location
	Now         func() time.Time
	Tracer      trace.Tracer
}

// Service is the booking engine.
type Service struct {
	store    repository.Store
	gateway  payment.Gateway
	avail    *availability.Engine
	sweeper  *sweeper.Sweeper
	refs     *RefCodes
	events   queue.Publisher
	log      *logrus.Logger
	cfg      config.BookingConfig
	pay      config.PaymentConfig
	frontend string
	loc      *time.Location
	now      func() time.Time
	tracer   trace.Tracer
}

func New(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		gateway:  d.Gateway,
		sweeper:  d.Sweeper,
		events:   d.Events,
		log:      d.Log,
		cfg:      d.Booking,
		pay:      d.Payment,
		frontend: d.FrontendURL,
		loc:      d.Location,
		now:      d.Now,
		tracer:   d.Tracer,
	}
	if s.events == nil {
		s.events = queue.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.sweeper == nil {
		s.sweeper = sweeper.New(d.Store, s.events, d.Log, d.Booking.StaleAfter, s.now)
	}
	s.avail = availability.New(d.Store, d.Booking.CleaningBuffer, s.now)
	s.refs = NewRefCodes(d.Store.ReferenceExists, s.now)
	return s
}

// Location is the hotel's local time zone.
func (s *Service) Location() *time.Location { return s.loc }

// SweepStale cancels unpaid reservations older than the payment window.
func (s *Service) SweepStale(ctx context.Context) (int64, error) {
	n, err := s.sweeper.Sweep(ctx)
	if err != nil {
		return 0, apperr.Internal("sweep stale bookings", err)
	}
	return n, nil
}

// sweepQuietly runs the opportunistic sweep ahead of an availability
// check.  Failures only cost freshness, so they are logged.
func (s *Service) sweepQuietly(ctx context.Context) {
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		s.log.WithError(err).Warn("opportunistic sweep failed")
	}
}

// RoomTypes returns the catalog.
func (s *Service) RoomTypes(ctx context.Context) ([]model.RoomTypeInfo, error) {
	types, err := s.store.RoomTypes(ctx)
	if err != nil {
		return nil, apperr.Internal("load room types", err)
	}
	return types, nil
}

// RoomType returns the catalog entry named by slug ("deluxe-room").
func (s *Service) RoomType(ctx context.Context, slug string) (model.RoomTypeInfo, error) {
	t, ok := model.RoomTypeFromSlug(slug)
	if !ok {
		return model.RoomTypeInfo{}, apperr.NotFound("room type not found")
	}
	types, err := s.RoomTypes(ctx)
	if err != nil {
		return model.RoomTypeInfo{}, err
	}
	for _, info := range types {
		if info.Type == t {
			return info, nil
		}
	}
	return model.RoomTypeInfo{}, apperr.NotFound("room type not found")
}

// CheckAvailability lists every free room of type t for the window.  Stale
// pending bookings are swept first so abandoned checkouts do not hide
// rooms.
func (s *Service) CheckAvailability(ctx context.Context, t model.RoomType, checkIn time.Time, hours int) ([]availability.Candidate, error) {
	if !t.Valid() {
		return nil, apperr.NotFound("room type not found")
	}
	if err := availability.ValidateCheckIn(checkIn, hours, s.now(), s.cfg.PastGrace, s.cfg.MaxAdvance); err != nil {
		return nil, err
	}
	s.sweepQuietly(ctx)
	return s.avail.FindAvailable(ctx, availability.Query{Type: t, CheckIn: checkIn, DurationHours: hours})
}

// ByReference looks a reservation up by its reference code.
func (s *Service) ByReference(ctx context.Context, code string) (model.Reservation, error) {
	r, err := s.store.ReservationByReference(ctx, code)
	if errors.Is(err, repository.ErrReservationNotFound) {
		return model.Reservation{}, apperr.NotFound("booking not found")
	}
	if err != nil {
		return model.Reservation{}, apperr.Internal("load booking", err)
	}
	return r, nil
}

// Room returns a physical room.
func (s *Service) Room(ctx context.Context, id uint64) (model.Room, error) {
	r, err := s.store.RoomByID(ctx, id)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return model.Room{}, apperr.NotFound("room not found")
	}
	if err != nil {
		return model.Room{}, apperr.Internal("load room", err)
	}
	return r, nil
}

// MyBookings lists the caller's own reservations, newest first.
func (s *Service) MyBookings(ctx context.Context, caller Caller) ([]model.Reservation, error) {
	if caller.UserID == 0 {
		return nil, apperr.Security("authentication required")
	}
	id := caller.UserID
	list, err := s.store.ListReservations(ctx, repository.ReservationFilter{GuestID: &id})
	if err != nil {
		return nil, apperr.Internal("list bookings", err)
	}
	return list, nil
}

// BookingCount counts the caller's reservations that were not cancelled.
func (s *Service) BookingCount(ctx context.Context, caller Caller) (int, error) {
	list, err := s.MyBookings(ctx, caller)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range list {
		if r.Status != model.StatusCancelled {
			n++
		}
	}
	return n, nil
}

// AvailableRooms lists the rooms housekeeping has marked Available and no
// one is holding right now, cheapest first.  It says nothing about future
// bookings; CheckAvailability answers for a specific window.
func (s *Service) AvailableRooms(ctx context.Context) ([]model.Room, error) {
	rooms, err := s.store.Rooms(ctx)
	if err != nil {
		return nil, apperr.Internal("load rooms", err)
	}
	now := s.now()
	out := make([]model.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Status == model.RoomAvailable && !r.SoftLocked(now, "") {
			out = append(out, r)
		}
	}
	shortest := model.SupportedDurations[0]
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rates[shortest] < out[j].Rates[shortest] })
	return out, nil
}

// attributeGuest decides who a reservation belongs to.  The token's user
// wins unless the caller may book on behalf of guests.
func (s *Service) attributeGuest(caller Caller, override *uint64) *uint64 {
	if override != nil && *override != 0 && *override != caller.UserID {
		if caller.Role.CanBookOnBehalf() {
			id := *override
			return &id
		}
		s.log.WithFields(logrus.Fields{
			"user_id":  caller.UserID,
			"role":     caller.Role,
			"guest_id": *override,
		}).Warn("ignored guest override from a caller without booking rights")
	}
	if caller.UserID == 0 {
		return nil
	}
	id := caller.UserID
	return &id
}

func (s *Service) lockRoom(ctx context.Context, tx repository.Tx, roomID uint64) (model.Room, error) {
	room, err := tx.LockRoom(ctx, roomID)
	switch {
	case errors.Is(err, repository.ErrLockTimeout):
		return model.Room{}, apperr.Conflict("room is being booked by someone else, please try again")
	case errors.Is(err, repository.ErrRoomNotFound):
		return model.Room{}, apperr.NotFound("room not found")
	case err != nil:
		return model.Room{}, apperr.Internal("lock room", err)
	}
	return room, nil
}

// recheck repeats the conflict test under the room lock.  Only this check
// guarantees that a room is never double-booked.  The reservation with id
// self, when non-zero, is left out of the comparison.
func (s *Service) recheck(ctx context.Context, tx repository.Tx, roomID, self uint64, in, out time.Time) error {
	existing, err := tx.BlockingReservations(ctx, roomID)
	if err != nil {
		return apperr.Internal("load reservations", err)
	}
	others := existing[:0:0]
	for _, r := range existing {
		if r.ID != self {
			others = append(others, r)
		}
	}
	if availability.HasConflict(others, in, out, s.cfg.CleaningBuffer) {
		return apperr.Conflict("room is no longer available for the requested time")
	}
	return nil
}

func insert(ctx context.Context, tx repository.Tx, r *model.Reservation) error {
	err := tx.InsertReservation(ctx, r)
	if errors.Is(err, repository.ErrDuplicateReference) {
		return apperr.Conflict("booking reference collided, please retry")
	}
	if err != nil {
		return apperr.Internal("insert reservation", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, ev queue.BookingEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": ev.Type, "reference": ev.ReferenceCode}).
			Warn("publish booking event failed")
	}
}

// txError keeps taxonomy errors raised inside a transaction and wraps
// anything else.
func txError(msg string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(msg, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
	}
	span.End()
}
