// Package repository defines the persistence contracts of the booking core
// and their MySQL implementation.  Sentinel errors let higher layers tell
// failure scenarios apart without inspecting driver errors; the booking
// engine translates them into its own error taxonomy.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrRoomNotFound is returned when a room id does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrReservationNotFound is returned for an unknown reservation id or
	// reference code.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrUserNotFound is returned for an unknown user id or email.
	ErrUserNotFound = errors.New("user not found")

	// ErrLockTimeout means the room row lock could not be obtained in time,
	// usually because another booking for the same room is in flight.
	ErrLockTimeout = errors.New("room lock wait timeout")

	// ErrDuplicateReference is returned when a reference code is already
	// taken.
	ErrDuplicateReference = errors.New("duplicate reference code")

	// ErrEmailExists is returned when registering an email twice.
	ErrEmailExists = errors.New("email already exists")

	// ErrTokenInvalid covers unknown, expired and revoked refresh tokens.
	ErrTokenInvalid = errors.New("refresh token invalid")
)

// MySQL server error numbers the repository reacts to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

func mysqlErrNo(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports a unique key violation.
func isDuplicate(err error) bool { return mysqlErrNo(err) == mysqlDuplicateEntry }

// isLockTimeout reports a lock wait timeout or a deadlock victim; both mean
// another transaction holds the row.
func isLockTimeout(err error) bool {
	n := mysqlErrNo(err)
	return n == mysqlLockWaitTimeout || n == mysqlDeadlock
}
