package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository/memory"
)

var (
	now    = time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	day    = time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)
	buffer = 30 * time.Minute
)

func setup(t *testing.T) (*memory.Store, *Engine, uint64, uint64) {
	t.Helper()
	s := memory.New(time.Second)
	for _, info := range memory.DefaultRoomTypes {
		s.AddRoomType(info)
	}
	a := s.AddRoom("201S", model.RoomTypeStandard)
	b := s.AddRoom("202S", model.RoomTypeStandard)
	s.AddRoom("301D", model.RoomTypeDeluxe)
	return s, New(s, buffer, func() time.Time { return now }), a, b
}

func stay(roomID uint64, in time.Time, hours int, status model.ReservationStatus) model.Reservation {
	return model.Reservation{
		ReferenceCode: in.Format("150405") + string(rune('A'+roomID)),
		RoomID:        roomID,
		CheckIn:       in,
		CheckOut:      in.Add(time.Duration(hours) * time.Hour),
		DurationHours: hours,
		Status:        status,
		TotalCents:    1,
		CreatedAt:     now,
	}
}

func ids(cs []Candidate) []uint64 {
	out := make([]uint64, len(cs))
	for i, c := range cs {
		out[i] = c.RoomID
	}
	return out
}

func TestFindAvailableByType(t *testing.T) {
	_, e, a, b := setup(t)
	got, err := e.FindAvailable(context.Background(), Query{Type: model.RoomTypeStandard, CheckIn: day, DurationHours: 3})
	require.NoError(t, err)
	assert.Equal(t, []uint64{a, b}, ids(got))
	assert.Equal(t, "201S", got[0].Number)
	assert.Equal(t, "Standard Room 201S", got[0].Name)
}

func TestBufferEnforcement(t *testing.T) {
	s, e, a, _ := setup(t)
	// Existing stay 06:00-09:00 on room a.
	s.AddReservation(stay(a, day, 3, model.StatusConfirmed))
	end := day.Add(3 * time.Hour)

	cases := []struct {
		name    string
		checkIn time.Time
		free    bool
	}{
		{"inside the stay", day.Add(time.Hour), false},
		{"right at check-out", end, false},
		{"within the cleaning buffer", end.Add(25 * time.Minute), false},
		{"exactly at check-out plus buffer", end.Add(buffer), true},
		{"ending exactly at existing check-in", day.Add(-3 * time.Hour), true},
		{"ending after existing check-in", day.Add(-2 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.FindAvailable(context.Background(), Query{RoomID: a, CheckIn: tc.checkIn, DurationHours: 3})
			require.NoError(t, err)
			assert.Equal(t, tc.free, len(got) == 1)
		})
	}
}

func TestCancelledAndCompletedDoNotBlock(t *testing.T) {
	s, e, a, _ := setup(t)
	s.AddReservation(stay(a, day, 3, model.StatusCancelled))
	s.AddReservation(stay(a, day.Add(time.Minute), 3, model.StatusCompleted))
	got, err := e.FindAvailable(context.Background(), Query{RoomID: a, CheckIn: day, DurationHours: 3})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDirtyAndMaintenanceExcluded(t *testing.T) {
	s, e, a, b := setup(t)
	ctx := context.Background()
	require.NoError(t, s.UpdateRoomStatus(ctx, a, model.RoomDirty))
	require.NoError(t, s.UpdateRoomStatus(ctx, b, model.RoomMaintenance))

	got, err := e.FindAvailable(ctx, Query{Type: model.RoomTypeStandard, CheckIn: day.Add(30 * 24 * time.Hour), DurationHours: 24})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.UpdateRoomStatus(ctx, b, model.RoomOccupied))
	got, err = e.FindAvailable(ctx, Query{Type: model.RoomTypeStandard, CheckIn: day.Add(30 * 24 * time.Hour), DurationHours: 24})
	require.NoError(t, err)
	assert.Equal(t, []uint64{b}, ids(got))
}

func TestSoftLockSkippedUnlessHolder(t *testing.T) {
	s, e, a, b := setup(t)
	ctx := context.Background()
	ok, err := s.SetRoomLock(ctx, a, "tok", now.Add(10*time.Minute), now)
	require.NoError(t, err)
	require.True(t, ok)

	got, _ := e.FindAvailable(ctx, Query{Type: model.RoomTypeStandard, CheckIn: day, DurationHours: 3})
	assert.Equal(t, []uint64{b}, ids(got))

	got, _ = e.FindAvailable(ctx, Query{Type: model.RoomTypeStandard, CheckIn: day, DurationHours: 3, LockToken: "tok"})
	assert.Equal(t, []uint64{a, b}, ids(got))
}

func TestSpecificRoom(t *testing.T) {
	_, e, a, _ := setup(t)
	ctx := context.Background()

	got, err := e.FindAvailable(ctx, Query{Type: model.RoomTypeDeluxe, RoomID: a, CheckIn: day, DurationHours: 3})
	require.NoError(t, err)
	assert.Empty(t, got, "room of another type")

	_, err = e.FindAvailable(ctx, Query{RoomID: 999, CheckIn: day, DurationHours: 3})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestValidateCheckIn(t *testing.T) {
	grace, maxAdv := 5*time.Minute, 365*24*time.Hour
	cases := []struct {
		name    string
		checkIn time.Time
		hours   int
		ok      bool
	}{
		{"aligned future", day, 3, true},
		{"unsupported duration", day, 4, false},
		{"misaligned minutes", day.Add(7 * time.Minute), 3, false},
		{"seconds set", day.Add(30 * time.Second), 3, false},
		{"within grace", now.Add(-5 * time.Minute), 6, true},
		{"past grace", now.Add(-10 * time.Minute), 6, false},
		{"too far ahead", now.Add(maxAdv + 5*time.Minute), 12, false},
		{"zero", time.Time{}, 12, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCheckIn(tc.checkIn, tc.hours, now, grace, maxAdv)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}
