package repository

import (
	"context"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// ReservationFilter narrows ListReservations.  Zero values mean "any".
type ReservationFilter struct {
	Status  model.ReservationStatus
	GuestID *uint64
	RoomID  uint64
	From    time.Time // check_in >= From
	To      time.Time // check_in < To
	Limit   int
}

// Store is the persistence contract of the booking core.  Reads outside a
// transaction take no locks and may be stale; the booking engine closes
// that gap with a locked re-check inside InTx.
type Store interface {
	RoomTypes(ctx context.Context) ([]model.RoomTypeInfo, error)
	Rooms(ctx context.Context) ([]model.Room, error)
	RoomsByType(ctx context.Context, t model.RoomType) ([]model.Room, error)
	RoomByID(ctx context.Context, id uint64) (model.Room, error)
	UpdateRoomStatus(ctx context.Context, id uint64, status model.RoomStatus) error
	// SetRoomLock places a soft lock unless another holder's lock is still
	// live at now.  It reports whether the lock was taken.
	SetRoomLock(ctx context.Context, id uint64, token string, expires, now time.Time) (bool, error)
	// ClearRoomLock removes the soft lock held by token.
	ClearRoomLock(ctx context.Context, id uint64, token string) (bool, error)
	CountRoomsByStatus(ctx context.Context) (map[model.RoomStatus]int, error)

	// BlockingReservations returns, per room id, the reservations whose
	// status still holds the room.
	BlockingReservations(ctx context.Context, roomIDs []uint64) (map[uint64][]model.Reservation, error)
	ReferenceExists(ctx context.Context, code string) (bool, error)
	ReservationByReference(ctx context.Context, code string) (model.Reservation, error)
	ReservationByID(ctx context.Context, id uint64) (model.Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	// TransitionByReference moves a reservation from one status to another
	// in a single conditional update.  It reports false when the
	// reservation was not in the from status.
	TransitionByReference(ctx context.Context, code string, from, to model.ReservationStatus) (bool, error)
	// CancelStalePending cancels every Pending_Payment reservation created
	// before the cutoff and returns them.
	CancelStalePending(ctx context.Context, before time.Time) ([]model.Reservation, error)

	// InsertShiftReport stores a submitted shift report and sets its ID.
	InsertShiftReport(ctx context.Context, r *model.ShiftReport) error

	// InTx runs fn inside a transaction.  The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside InTx.
type Tx interface {
	// LockRoom takes an exclusive lock on the room row for the rest of the
	// transaction.  It fails with ErrLockTimeout when the lock cannot be
	// obtained within the configured wait.
	LockRoom(ctx context.Context, roomID uint64) (model.Room, error)
	BlockingReservations(ctx context.Context, roomID uint64) ([]model.Reservation, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	SetCheckoutSession(ctx context.Context, reservationID uint64, sessionID string) error
	ReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
	// UpdateReservation persists status, check-in and check-out.
	UpdateReservation(ctx context.Context, r model.Reservation) error
	UpdateRoomStatus(ctx context.Context, roomID uint64, status model.RoomStatus) error
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, id uint64) (model.User, error)
	// UpdateProfile saves names, email and phone of an existing user.  It
	// fails with ErrEmailExists when the email belongs to someone else.
	UpdateProfile(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	// ListStaff returns every non-guest account ordered by role, then
	// last name.
	ListStaff(ctx context.Context) ([]model.User, error)
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
	PurgeRefresh(ctx context.Context, cutoff time.Time) (int64, error)
}
