package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RoomRepo provides access to the rooms and room_types tables.  Rooms are
// always loaded together with the rate card of their type.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `r.id, r.room_number, r.room_type, r.name, r.status, r.lock_expires_at, r.locked_by,
       t.rate_3h_cents, t.rate_6h_cents, t.rate_12h_cents, t.rate_24h_cents`

const roomFrom = ` FROM rooms r JOIN room_types t ON t.code = r.room_type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(s rowScanner) (model.Room, error) {
	var (
		rm               model.Room
		lockExp          sql.NullTime
		lockedBy         sql.NullString
		r3, r6, r12, r24 int64
	)
	if err := s.Scan(&rm.ID, &rm.Number, &rm.Type, &rm.Name, &rm.Status, &lockExp, &lockedBy,
		&r3, &r6, &r12, &r24); err != nil {
		return model.Room{}, err
	}
	if lockExp.Valid {
		t := lockExp.Time.UTC()
		rm.LockExpiresAt = &t
	}
	if lockedBy.Valid {
		s := lockedBy.String
		rm.LockedBy = &s
	}
	rm.Rates = model.RateCard{3: r3, 6: r6, 12: r12, 24: r24}
	return rm, nil
}

func queryRooms(ctx context.Context, q querier, query string, args ...any) ([]model.Room, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

// RoomTypes lists the catalog entries in display order.
func (r *RoomRepo) RoomTypes(ctx context.Context) ([]model.RoomTypeInfo, error) {
	const q = `SELECT code, name, tagline, COALESCE(description, ''), capacity, size,
                      rate_3h_cents, rate_6h_cents, rate_12h_cents, rate_24h_cents
               FROM room_types
               ORDER BY FIELD(code, 'Value', 'Standard', 'Deluxe', 'Superior', 'Suite')`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RoomTypeInfo
	for rows.Next() {
		var (
			info             model.RoomTypeInfo
			r3, r6, r12, r24 int64
		)
		if err := rows.Scan(&info.Type, &info.Name, &info.Tagline, &info.Description, &info.Capacity, &info.Size,
			&r3, &r6, &r12, &r24); err != nil {
			return nil, err
		}
		info.Rates = model.RateCard{3: r3, 6: r6, 12: r12, 24: r24}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Rooms returns every room ordered by room number.
func (r *RoomRepo) Rooms(ctx context.Context) ([]model.Room, error) {
	return queryRooms(ctx, r.db, `SELECT `+roomColumns+roomFrom+` ORDER BY r.room_number`)
}

// RoomsByType returns the rooms of one type ordered by room number, which
// is also the auto-assignment order.
func (r *RoomRepo) RoomsByType(ctx context.Context, t model.RoomType) ([]model.Room, error) {
	return queryRooms(ctx, r.db, `SELECT `+roomColumns+roomFrom+` WHERE r.room_type = ? ORDER BY r.room_number`, string(t))
}

// RoomByID loads one room.  It returns ErrRoomNotFound when the id is unknown.
func (r *RoomRepo) RoomByID(ctx context.Context, id uint64) (model.Room, error) {
	rm, err := scanRoom(r.db.QueryRowContext(ctx, `SELECT `+roomColumns+roomFrom+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, ErrRoomNotFound
	}
	return rm, err
}

// UpdateRoomStatus sets the housekeeping status of a room.
func (r *RoomRepo) UpdateRoomStatus(ctx context.Context, id uint64, status model.RoomStatus) error {
	return updateRoomStatus(ctx, r.db, id, status)
}

func updateRoomStatus(ctx context.Context, q querier, id uint64, status model.RoomStatus) error {
	res, err := q.ExecContext(ctx, `UPDATE rooms SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged.
		var exists int
		if err := q.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRoomNotFound
			}
			return err
		}
	}
	return nil
}

// SetRoomLock places a soft lock on a room for token until expires.  An
// existing lock is only replaced when it has lapsed or belongs to token.
func (r *RoomRepo) SetRoomLock(ctx context.Context, id uint64, token string, expires, now time.Time) (bool, error) {
	const q = `UPDATE rooms SET lock_expires_at = ?, locked_by = ?
               WHERE id = ? AND (lock_expires_at IS NULL OR lock_expires_at <= ? OR locked_by = ?)`
	res, err := r.db.ExecContext(ctx, q, expires.UTC(), token, id, now.UTC(), token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := r.RoomByID(ctx, id); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

// ClearRoomLock releases the soft lock held by token.
func (r *RoomRepo) ClearRoomLock(ctx context.Context, id uint64, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET lock_expires_at = NULL, locked_by = NULL WHERE id = ? AND locked_by = ?`, id, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountRoomsByStatus returns the number of rooms in each status.
func (r *RoomRepo) CountRoomsByStatus(ctx context.Context) (map[model.RoomStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM rooms GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[model.RoomStatus]int)
	for rows.Next() {
		var (
			s model.RoomStatus
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

// LockTx takes an exclusive lock on the room row within tx.  The wait
// for a row held elsewhere is bounded by the session setting InTx applies.
func (r *RoomRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Room, error) {
	rm, err := scanRoom(tx.QueryRowContext(ctx, `SELECT `+roomColumns+roomFrom+` WHERE r.id = ? FOR UPDATE OF r`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Room{}, ErrRoomNotFound
	case isLockTimeout(err):
		return model.Room{}, ErrLockTimeout
	}
	return rm, err
}

// UpdateStatusTx is UpdateRoomStatus inside tx.
func (r *RoomRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.RoomStatus) error {
	return updateRoomStatus(ctx, tx, id, status)
}
