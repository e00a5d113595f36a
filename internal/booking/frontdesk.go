package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Hold bounds, in minutes.
const (
	DefaultHoldMinutes = 10
	MaxHoldMinutes     = 60
)

func requireStaff(caller Caller) error {
	if !caller.Role.IsStaff() {
		return apperr.Security("staff access required")
	}
	return nil
}

// UpdateStatus applies a front-desk transition.  Confirmed is reserved for
// payment reconciliation and is rejected here.
//
// Checking in restarts the stay clock at now and marks the room Occupied;
// completing stamps the actual check-out and marks the room Dirty.
func (s *Service) UpdateStatus(ctx context.Context, caller Caller, reservationID uint64, to model.ReservationStatus) (model.Reservation, error) {
	if err := requireStaff(caller); err != nil {
		return model.Reservation{}, err
	}
	switch to {
	case model.StatusCheckedIn, model.StatusCompleted, model.StatusCancelled:
	case model.StatusConfirmed:
		return model.Reservation{}, apperr.Validation("Confirmed is set by payment confirmation only")
	default:
		return model.Reservation{}, apperr.Validationf("invalid status %q", to)
	}

	var (
		out  model.Reservation
		prev model.ReservationStatus
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.ReservationForUpdate(ctx, reservationID)
		if errors.Is(err, repository.ErrReservationNotFound) {
			return apperr.NotFound("booking not found")
		}
		if errors.Is(err, repository.ErrLockTimeout) {
			return apperr.Conflict("room is busy, please try again")
		}
		if err != nil {
			return apperr.Internal("load booking", err)
		}
		if !model.CanTransition(r.Status, to) {
			return apperr.Validationf("cannot change status from %s to %s", r.Status, to)
		}
		prev = r.Status
		now := s.now().UTC()
		r.Status = to

		var roomStatus model.RoomStatus
		switch to {
		case model.StatusCheckedIn:
			// The stay moves to [now, now+duration]; the new window must
			// still clear every other booking on the room.
			if _, err := s.lockRoom(ctx, tx, r.RoomID); err != nil {
				return err
			}
			in, out := now, now.Add(r.Duration())
			if err := s.recheck(ctx, tx, r.RoomID, r.ID, in, out); err != nil {
				if apperr.KindOf(err) == apperr.KindConflict {
					return apperr.Conflict("checking in now would overlap another booking on this room")
				}
				return err
			}
			r.CheckIn, r.CheckOut = in, out
			roomStatus = model.RoomOccupied
		case model.StatusCompleted:
			r.CheckOut = now
			roomStatus = model.RoomDirty
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return apperr.Internal("update booking", err)
		}
		if roomStatus != "" {
			if err := tx.UpdateRoomStatus(ctx, r.RoomID, roomStatus); err != nil {
				return apperr.Internal("update room status", err)
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return model.Reservation{}, txError("update booking status", err)
	}

	s.log.WithFields(logrus.Fields{
		"reference": out.ReferenceCode,
		"from":      prev,
		"to":        to,
		"staff_id":  caller.UserID,
	}).Info("booking status updated")
	ev := queue.NewBookingEvent(queue.EventForStatus(to), out, prev, s.now())
	ev.Reason = fmt.Sprintf("front desk (%s)", caller.Role)
	s.publish(ctx, ev)
	return out, nil
}

// UpdateRoomStatus is the housekeeping and admin override of a room's
// status.
func (s *Service) UpdateRoomStatus(ctx context.Context, caller Caller, roomID uint64, status model.RoomStatus) (model.Room, error) {
	if err := requireStaff(caller); err != nil {
		return model.Room{}, err
	}
	if !status.Valid() {
		verr := apperr.Validation("invalid room status")
		verr.AddField("status", "must be Available, Occupied, Dirty or Maintenance")
		return model.Room{}, verr
	}
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return model.Room{}, err
	}
	prev := room.Status
	if err := s.store.UpdateRoomStatus(ctx, roomID, status); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return model.Room{}, apperr.NotFound("room not found")
		}
		return model.Room{}, apperr.Internal("update room status", err)
	}
	room.Status = status
	s.log.WithFields(logrus.Fields{"room": room.Number, "from": prev, "to": status, "staff_id": caller.UserID}).
		Info("room status updated")
	s.publish(ctx, queue.NewRoomEvent(roomID, status, prev, s.now()))
	return room, nil
}

// HoldRoom soft-locks a room for minutes (DefaultHoldMinutes when 0) and
// returns the token that releases it.
func (s *Service) HoldRoom(ctx context.Context, caller Caller, roomID uint64, minutes int) (model.RoomHold, error) {
	if err := requireStaff(caller); err != nil {
		return model.RoomHold{}, err
	}
	if minutes == 0 {
		minutes = DefaultHoldMinutes
	}
	if minutes < 1 || minutes > MaxHoldMinutes {
		verr := apperr.Validation("invalid hold duration")
		verr.AddField("minutes", fmt.Sprintf("must be between 1 and %d", MaxHoldMinutes))
		return model.RoomHold{}, verr
	}
	now := s.now().UTC()
	hold := model.RoomHold{RoomID: roomID, Token: uuid.NewString(), ExpiresAt: now.Add(time.Duration(minutes) * time.Minute)}
	ok, err := s.store.SetRoomLock(ctx, roomID, hold.Token, hold.ExpiresAt, now)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return model.RoomHold{}, apperr.NotFound("room not found")
	}
	if err != nil {
		return model.RoomHold{}, apperr.Internal("hold room", err)
	}
	if !ok {
		return model.RoomHold{}, apperr.Conflict("room is already held")
	}
	return hold, nil
}

// ReleaseHold drops the hold identified by token.
func (s *Service) ReleaseHold(ctx context.Context, caller Caller, roomID uint64, token string) error {
	if err := requireStaff(caller); err != nil {
		return err
	}
	ok, err := s.store.ClearRoomLock(ctx, roomID, token)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return apperr.NotFound("room not found")
	}
	if err != nil {
		return apperr.Internal("release hold", err)
	}
	if !ok {
		return apperr.NotFound("no active hold with that token")
	}
	return nil
}

// RoomView is one tile of the front-desk room board.
type RoomView struct {
	Room     model.Room
	Held     bool
	Stay     *model.Reservation // the checked-in stay, if any
	TimeLeft time.Duration
	Upcoming int // paid or pending bookings that have not started yet
}

// RoomBoard lists every room with its current stay.
func (s *Service) RoomBoard(ctx context.Context) ([]RoomView, error) {
	rooms, err := s.store.Rooms(ctx)
	if err != nil {
		return nil, apperr.Internal("load rooms", err)
	}
	ids := make([]uint64, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	active, err := s.store.BlockingReservations(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load reservations", err)
	}
	now := s.now()
	out := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		v := RoomView{Room: room, Held: room.SoftLocked(now, "")}
		for _, r := range active[room.ID] {
			switch {
			case r.Status == model.StatusCheckedIn:
				stay := r
				v.Stay = &stay
				if left := r.CheckOut.Sub(now); left > 0 {
					v.TimeLeft = left
				}
			case r.CheckIn.After(now):
				v.Upcoming++
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// ListBookings returns reservations for the front desk.
func (s *Service) ListBookings(ctx context.Context, caller Caller, f repository.ReservationFilter) ([]model.Reservation, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validationf("invalid status %q", f.Status)
	}
	list, err := s.store.ListReservations(ctx, f)
	if err != nil {
		return nil, apperr.Internal("list bookings", err)
	}
	return list, nil
}

// Stats is the dashboard summary.
type Stats struct {
	TotalRooms        int                      `json:"totalRooms"`
	RoomsByStatus     map[model.RoomStatus]int `json:"roomsByStatus"`
	OccupancyPercent  float64                  `json:"occupancyPercent"`
	TodayBookings     int                      `json:"todayBookings"`
	TodayRevenueCents int64                    `json:"todayRevenueCents"`
	PendingPayments   int                      `json:"pendingPayments"`
}

// Stats summarises rooms and today's bookings, "today" being the hotel's
// local day.
func (s *Service) Stats(ctx context.Context, caller Caller) (Stats, error) {
	if err := requireStaff(caller); err != nil {
		return Stats{}, err
	}
	counts, err := s.store.CountRoomsByStatus(ctx)
	if err != nil {
		return Stats{}, apperr.Internal("count rooms", err)
	}
	st := Stats{RoomsByStatus: counts}
	for _, n := range counts {
		st.TotalRooms += n
	}
	if st.TotalRooms > 0 {
		pct := float64(counts[model.RoomOccupied]) / float64(st.TotalRooms) * 100
		st.OccupancyPercent = math.Round(pct*10) / 10
	}

	local := s.now().In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	today, err := s.store.ListReservations(ctx, repository.ReservationFilter{From: dayStart.UTC(), To: dayStart.AddDate(0, 0, 1).UTC()})
	if err != nil {
		return Stats{}, apperr.Internal("list bookings", err)
	}
	for _, r := range today {
		if !r.Status.Settled() {
			continue
		}
		st.TodayBookings++
		st.TodayRevenueCents += r.TotalCents
	}
	pending, err := s.store.ListReservations(ctx, repository.ReservationFilter{Status: model.StatusPendingPayment})
	if err != nil {
		return Stats{}, apperr.Internal("list bookings", err)
	}
	st.PendingPayments = len(pending)
	return st, nil
}
