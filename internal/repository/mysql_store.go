package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// MySQLStore implements Store, UserStore and TokenStore on a MySQL
// connection pool.
type MySQLStore struct {
	*RoomRepo
	*ReservationRepo
	*UserRepo
	*TokenRepo
	*ShiftRepo

	db       *sql.DB
	lockWait time.Duration
}

// NewMySQLStore wires the repositories around db.  lockWait bounds how long
// LockRoom waits for a room row held by another transaction.
func NewMySQLStore(db *sql.DB, lockWait time.Duration) *MySQLStore {
	return &MySQLStore{
		RoomRepo:        NewRoomRepo(db),
		ReservationRepo: NewReservationRepo(db),
		UserRepo:        NewUserRepo(db),
		TokenRepo:       NewTokenRepo(db),
		ShiftRepo:       NewShiftRepo(db),
		db:              db,
		lockWait:        lockWait,
	}
}

// InTx runs fn in a READ COMMITTED transaction so the locked re-check sees
// rows committed by the previous lock holder.
//
// The transaction runs on a pinned connection whose innodb_lock_wait_timeout
// is bounded by lockWait, so a slow holder of a room or reservation row turns
// into ErrLockTimeout.  The setting is put back to the server default before
// the connection returns to the pool; a connection that cannot be reset is
// discarded instead.
func (s *MySQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", lockWaitSeconds(s.lockWait))); err != nil {
		return err
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "SET SESSION innodb_lock_wait_timeout = DEFAULT"); err != nil {
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &mysqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockWaitSeconds rounds d up to whole seconds, at least one.
func lockWaitSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

type mysqlTx struct {
	tx *sql.Tx
	s  *MySQLStore
}

func (t *mysqlTx) LockRoom(ctx context.Context, roomID uint64) (model.Room, error) {
	return t.s.RoomRepo.LockTx(ctx, t.tx, roomID)
}

func (t *mysqlTx) BlockingReservations(ctx context.Context, roomID uint64) ([]model.Reservation, error) {
	return t.s.ReservationRepo.BlockingTx(ctx, t.tx, roomID)
}

func (t *mysqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.ReservationRepo.CreateTx(ctx, t.tx, r)
}

func (t *mysqlTx) SetCheckoutSession(ctx context.Context, reservationID uint64, sessionID string) error {
	return t.s.ReservationRepo.SetSessionTx(ctx, t.tx, reservationID, sessionID)
}

func (t *mysqlTx) ReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return t.s.ReservationRepo.ForUpdateTx(ctx, t.tx, id)
}

func (t *mysqlTx) UpdateReservation(ctx context.Context, r model.Reservation) error {
	return t.s.ReservationRepo.UpdateTx(ctx, t.tx, r)
}

func (t *mysqlTx) UpdateRoomStatus(ctx context.Context, roomID uint64, status model.RoomStatus) error {
	return t.s.RoomRepo.UpdateStatusTx(ctx, t.tx, roomID, status)
}

var (
	_ Store      = (*MySQLStore)(nil)
	_ UserStore  = (*MySQLStore)(nil)
	_ TokenStore = (*MySQLStore)(nil)
)
