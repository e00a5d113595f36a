package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

var t0 = time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)

func pending(ref string, roomID uint64, created time.Time) model.Reservation {
	return model.Reservation{
		ReferenceCode: ref,
		RoomID:        roomID,
		CheckIn:       t0,
		CheckOut:      t0.Add(3 * time.Hour),
		DurationHours: 3,
		Adults:        1,
		Source:        model.SourceWeb,
		Status:        model.StatusPendingPayment,
		TotalCents:    70000,
		CreatedAt:     created,
	}
}

func TestSeededInventory(t *testing.T) {
	s := NewSeeded(time.Second)
	ctx := context.Background()

	rooms, err := s.RoomsByType(ctx, model.RoomTypeStandard)
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, "201S", rooms[0].Number)
	assert.Equal(t, int64(70000), rooms[0].Rates[3])

	types, err := s.RoomTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, len(model.RoomTypes))
}

func TestLockRoomTimesOutWhileHeld(t *testing.T) {
	s := NewSeeded(50 * time.Millisecond)
	ctx := context.Background()

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			_, err := tx.LockRoom(ctx, 1)
			close(locked)
			<-done
			return err
		})
	}()
	<-locked

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.LockRoom(ctx, 1)
		return err
	})
	assert.ErrorIs(t, err, repository.ErrLockTimeout)
	close(done)

	// Other rooms are independent.
	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.LockRoom(ctx, 2)
		return err
	})
	assert.NoError(t, err)
}

func TestRollbackUndoesWrites(t *testing.T) {
	s := NewSeeded(time.Second)
	ctx := context.Background()
	boom := errors.New("gateway down")

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r := pending("BKG-1", 1, t0)
		require.NoError(t, tx.InsertReservation(ctx, &r))
		require.NoError(t, tx.SetCheckoutSession(ctx, r.ID, "cs_1"))
		require.NoError(t, tx.UpdateRoomStatus(ctx, 1, model.RoomOccupied))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, _ := s.ReferenceExists(ctx, "BKG-1")
	assert.False(t, exists)
	room, _ := s.RoomByID(ctx, 1)
	assert.Equal(t, model.RoomAvailable, room.Status)

	// The lock was released.
	assert.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.LockRoom(ctx, 1)
		return err
	}))
}

func TestInsertDuplicateReference(t *testing.T) {
	s := NewSeeded(time.Second)
	ctx := context.Background()
	s.AddReservation(pending("BKG-DUP", 1, t0))

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r := pending("BKG-DUP", 2, t0)
		return tx.InsertReservation(ctx, &r)
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateReference)
}

func TestTransitionByReferenceIsGuarded(t *testing.T) {
	s := NewSeeded(time.Second)
	ctx := context.Background()
	s.AddReservation(pending("BKG-2", 1, t0))

	ok, err := s.TransitionByReference(ctx, "BKG-2", model.StatusPendingPayment, model.StatusConfirmed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionByReference(ctx, "BKG-2", model.StatusPendingPayment, model.StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = s.TransitionByReference(ctx, "NOPE", model.StatusPendingPayment, model.StatusConfirmed)
	assert.False(t, ok)
}

func TestCancelStalePending(t *testing.T) {
	s := NewSeeded(time.Second)
	ctx := context.Background()
	now := t0
	s.AddReservation(pending("OLD", 1, now.Add(-6*time.Minute)))
	s.AddReservation(pending("NEW", 2, now.Add(-4*time.Minute)))

	got, err := s.CancelStalePending(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OLD", got[0].ReferenceCode)

	newer, _ := s.ReservationByReference(ctx, "NEW")
	assert.Equal(t, model.StatusPendingPayment, newer.Status)

	again, err := s.CancelStalePending(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSoftLockHolders(t *testing.T) {
	s := NewSeeded(time.Second)
	ctx := context.Background()

	ok, err := s.SetRoomLock(ctx, 1, "a", t0.Add(10*time.Minute), t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.SetRoomLock(ctx, 1, "b", t0.Add(10*time.Minute), t0)
	assert.False(t, ok, "live lock held by another token")

	ok, _ = s.SetRoomLock(ctx, 1, "b", t0.Add(30*time.Minute), t0.Add(11*time.Minute))
	assert.True(t, ok, "expired lock may be taken over")

	ok, _ = s.ClearRoomLock(ctx, 1, "a")
	assert.False(t, ok)
	ok, _ = s.ClearRoomLock(ctx, 1, "b")
	assert.True(t, ok)

	_, err = s.SetRoomLock(ctx, 999, "a", t0, t0)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestListReservationsFilters(t *testing.T) {
	s := NewSeeded(time.Second)
	ctx := context.Background()
	guest := uint64(7)
	r1 := pending("A", 1, t0)
	r1.GuestID = &guest
	s.AddReservation(r1)
	r2 := pending("B", 2, t0)
	r2.CheckIn = t0.Add(24 * time.Hour)
	r2.Status = model.StatusConfirmed
	s.AddReservation(r2)

	all, _ := s.ListReservations(ctx, repository.ReservationFilter{})
	require.Len(t, all, 2)
	assert.Equal(t, "B", all[0].ReferenceCode)

	mine, _ := s.ListReservations(ctx, repository.ReservationFilter{GuestID: &guest})
	require.Len(t, mine, 1)
	assert.Equal(t, "A", mine[0].ReferenceCode)

	confirmed, _ := s.ListReservations(ctx, repository.ReservationFilter{Status: model.StatusConfirmed})
	assert.Len(t, confirmed, 1)

	day, _ := s.ListReservations(ctx, repository.ReservationFilter{From: t0, To: t0.Add(time.Hour)})
	assert.Len(t, day, 1)
}

func TestUsersAndTokens(t *testing.T) {
	s := New(time.Second)
	s.SetClock(func() time.Time { return t0 })
	ctx := context.Background()

	u := &model.User{Email: " Ana@Example.com ", FirstName: "Ana", Role: model.RoleGuest}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, "ana@example.com", u.Email)
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "ana@example.com"}), repository.ErrEmailExists)

	got, err := s.UserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, s.StoreRefresh(ctx, u.ID, "h1", t0.Add(time.Hour)))
	id, err := s.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	require.NoError(t, s.RevokeAllForUser(ctx, u.ID))
	_, err = s.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrTokenInvalid)
}

func TestPurgeRefresh(t *testing.T) {
	s := New(time.Second)
	now := t0
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.StoreRefresh(ctx, 1, "live", t0.Add(48*time.Hour)))
	require.NoError(t, s.StoreRefresh(ctx, 1, "expired", t0.Add(time.Hour)))
	require.NoError(t, s.StoreRefresh(ctx, 2, "revoked", t0.Add(48*time.Hour)))
	require.NoError(t, s.RevokeByHash(ctx, "revoked"))

	now = t0.Add(2 * time.Hour)
	n, err := s.PurgeRefresh(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	id, err := s.ValidateRefresh(ctx, "live")
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
}

func TestProfileAndStaff(t *testing.T) {
	s := New(time.Second)
	ctx := context.Background()
	users := []model.User{
		{FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com", Role: model.RoleGuest},
		{FirstName: "Ben", LastName: "Uy", Email: "ben@example.com", Role: model.RoleFrontDesk},
		{FirstName: "Cora", LastName: "Lim", Email: "cora@example.com", Role: model.RoleAdmin},
		{FirstName: "Dan", LastName: "Abad", Email: "dan@example.com", Role: model.RoleFrontDesk},
	}
	for i := range users {
		require.NoError(t, s.CreateUser(ctx, &users[i]))
	}

	ana := users[0]
	ana.Email = " BEN@example.com "
	assert.ErrorIs(t, s.UpdateProfile(ctx, ana), repository.ErrEmailExists)

	ana.Email, ana.Phone, ana.LastName = "Ana.R@example.com", "09171234567", "Reyes-Cruz"
	require.NoError(t, s.UpdateProfile(ctx, ana))
	got, err := s.UserByEmail(ctx, "ana.r@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Reyes-Cruz", got.LastName)
	assert.Equal(t, "09171234567", got.Phone)
	_, err = s.UserByEmail(ctx, "ana@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	require.NoError(t, s.UpdatePassword(ctx, ana.ID, "new-hash"))
	got, _ = s.UserByID(ctx, ana.ID)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.ErrorIs(t, s.UpdatePassword(ctx, 99, "x"), repository.ErrUserNotFound)
	assert.ErrorIs(t, s.UpdateProfile(ctx, model.User{ID: 99, Email: "z@example.com"}), repository.ErrUserNotFound)

	staff, err := s.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 3)
	assert.Equal(t, "Cora", staff[0].FirstName)
	assert.Equal(t, "Dan", staff[1].FirstName)
	assert.Equal(t, "Ben", staff[2].FirstName)
}

func TestInsertShiftReport(t *testing.T) {
	s := New(time.Second)
	s.SetClock(func() time.Time { return t0 })

	rep := model.ShiftReport{StaffID: 7, PhysicalCashCents: 500000}
	require.NoError(t, s.InsertShiftReport(context.Background(), &rep))
	assert.Equal(t, uint64(1), rep.ID)

	got := s.ShiftReports()
	require.Len(t, got, 1)
	assert.Equal(t, t0, got[0].CreatedAt)
	assert.Equal(t, uint64(7), got[0].StaffID)
}
