// Package availability decides which physical rooms are free for a
// requested window.  It is read-only: results are advisory and the booking
// engine re-checks under a room lock before inserting anything.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// SlotGranularity is the alignment required of check-in times.
const SlotGranularity = 5 * time.Minute

// Source is the read side of the store the engine needs.
type Source interface {
	RoomsByType(ctx context.Context, t model.RoomType) ([]model.Room, error)
	RoomByID(ctx context.Context, id uint64) (model.Room, error)
	BlockingReservations(ctx context.Context, roomIDs []uint64) (map[uint64][]model.Reservation, error)
}

// Query describes a search.  Either Type or RoomID must be set; when both
// are, the room must be of that type.
type Query struct {
	Type          model.RoomType
	RoomID        uint64
	CheckIn       time.Time
	DurationHours int
	LockToken     string // lets the holder of a soft lock see its own room
}

// CheckOut returns the end of the requested window.
func (q Query) CheckOut() time.Time {
	return q.CheckIn.Add(time.Duration(q.DurationHours) * time.Hour)
}

// Candidate is one free room.
type Candidate struct {
	RoomID uint64 `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name"`
}

// Engine answers availability queries.
type Engine struct {
	src    Source
	buffer time.Duration
	now    func() time.Time
}

// New returns an Engine.  buffer is the cleaning time kept free after each
// check-out.
func New(src Source, buffer time.Duration, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{src: src, buffer: buffer, now: now}
}

// Buffer returns the configured cleaning buffer.
func (e *Engine) Buffer() time.Duration { return e.buffer }

// FindAvailable returns every free room matching q, ordered by room number.
// Dirty and Maintenance rooms are never offered, whatever the date, and
// rooms under someone else's live soft lock are skipped.  The query times
// must already be validated.
func (e *Engine) FindAvailable(ctx context.Context, q Query) ([]Candidate, error) {
	rooms, err := e.candidates(ctx, q)
	if err != nil {
		return nil, err
	}
	now := e.now()
	ids := make([]uint64, 0, len(rooms))
	eligible := rooms[:0]
	for _, r := range rooms {
		if !r.Status.Bookable() || r.SoftLocked(now, q.LockToken) {
			continue
		}
		eligible = append(eligible, r)
		ids = append(ids, r.ID)
	}
	if len(eligible) == 0 {
		return []Candidate{}, nil
	}

	existing, err := e.src.BlockingReservations(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load reservations", err)
	}
	in, out := q.CheckIn, q.CheckOut()
	free := make([]Candidate, 0, len(eligible))
	for _, r := range eligible {
		if HasConflict(existing[r.ID], in, out, e.buffer) {
			continue
		}
		free = append(free, Candidate{RoomID: r.ID, Number: r.Number, Name: r.DisplayName()})
	}
	return free, nil
}

func (e *Engine) candidates(ctx context.Context, q Query) ([]model.Room, error) {
	if q.RoomID != 0 {
		r, err := e.src.RoomByID(ctx, q.RoomID)
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperr.NotFound("room not found")
		}
		if err != nil {
			return nil, apperr.Internal("load room", err)
		}
		if q.Type != "" && r.Type != q.Type {
			return []model.Room{}, nil
		}
		return []model.Room{r}, nil
	}
	rooms, err := e.src.RoomsByType(ctx, q.Type)
	if err != nil {
		return nil, apperr.Internal("load rooms", err)
	}
	return rooms, nil
}

// Overlaps reports whether a requested window [in, out) collides with an
// existing stay once the cleaning buffer is appended to its check-out.
// A request starting exactly at check-out plus buffer does not collide.
func Overlaps(in, out time.Time, existing model.Reservation, buffer time.Duration) bool {
	return in.Before(existing.CheckOut.Add(buffer)) && out.After(existing.CheckIn)
}

// HasConflict reports whether any room-holding reservation in list
// overlaps the requested window.
func HasConflict(list []model.Reservation, in, out time.Time, buffer time.Duration) bool {
	for _, r := range list {
		if r.Status.Blocking() && Overlaps(in, out, r, buffer) {
			return true
		}
	}
	return false
}

// ValidateCheckIn applies the caller-side rules on a requested check-in:
// a supported duration, 5 minute alignment, not earlier than now minus
// grace and not later than now plus maxAdvance.
func ValidateCheckIn(checkIn time.Time, durationHours int, now time.Time, grace, maxAdvance time.Duration) error {
	verr := apperr.Validation("invalid booking window")
	if !model.ValidDuration(durationHours) {
		verr.AddField("duration", "must be one of 3h, 6h, 12h or 24h")
	}
	if checkIn.IsZero() {
		verr.AddField("checkIn", "is required")
		return verr
	}
	if checkIn.Second() != 0 || checkIn.Nanosecond() != 0 || checkIn.Minute()%5 != 0 {
		verr.AddField("checkIn", "must align to 5-minute increments")
	}
	if checkIn.Before(now.Add(-grace)) {
		verr.AddField("checkIn", "cannot book dates in the past")
	}
	if maxAdvance > 0 && checkIn.After(now.Add(maxAdvance)) {
		verr.AddField("checkIn", "cannot book more than one year ahead")
	}
	if len(verr.Fields) > 0 {
		verr.Message = firstMessage(verr)
		return verr
	}
	return nil
}

func firstMessage(e *apperr.Error) string {
	for _, k := range []string{"duration", "checkIn"} {
		if msgs := e.Fields[k]; len(msgs) > 0 {
			return k + " " + msgs[0]
		}
	}
	return e.Message
}
