package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// ReservationRepo provides access to the reservations table.  All
// timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, reference_code, guest_id, room_id, checkout_session_id, check_in, check_out,
       duration_hours, adults, children, child_ages, source, status, total_cents, created_at, updated_at`

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		res       model.Reservation
		guestID   sql.NullInt64
		sessionID sql.NullString
		ages      []byte
	)
	err := s.Scan(&res.ID, &res.ReferenceCode, &guestID, &res.RoomID, &sessionID, &res.CheckIn, &res.CheckOut,
		&res.DurationHours, &res.Adults, &res.Children, &ages, &res.Source, &res.Status, &res.TotalCents,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	if guestID.Valid {
		g := uint64(guestID.Int64)
		res.GuestID = &g
	}
	if sessionID.Valid {
		sid := sessionID.String
		res.CheckoutSessionID = &sid
	}
	if len(ages) > 0 {
		if err := json.Unmarshal(ages, &res.ChildAges); err != nil {
			return model.Reservation{}, err
		}
	}
	res.CheckIn = res.CheckIn.UTC()
	res.CheckOut = res.CheckOut.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	return res, nil
}

func queryReservations(ctx context.Context, q querier, query string, args ...any) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func blockingStatusArgs() []any {
	args := make([]any, len(model.BlockingStatuses))
	for i, s := range model.BlockingStatuses {
		args[i] = string(s)
	}
	return args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// BlockingReservations groups the room-holding reservations of the given
// rooms by room id.  Rooms without any are absent from the map.
func (r *ReservationRepo) BlockingReservations(ctx context.Context, roomIDs []uint64) (map[uint64][]model.Reservation, error) {
	out := make(map[uint64][]model.Reservation)
	if len(roomIDs) == 0 {
		return out, nil
	}
	args := blockingStatusArgs()
	for _, id := range roomIDs {
		args = append(args, id)
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations
          WHERE status IN (` + placeholders(len(model.BlockingStatuses)) + `)
            AND room_id IN (` + placeholders(len(roomIDs)) + `)
          ORDER BY check_in`
	list, err := queryReservations(ctx, r.db, q, args...)
	if err != nil {
		return nil, err
	}
	for _, res := range list {
		out[res.RoomID] = append(out[res.RoomID], res)
	}
	return out, nil
}

// ReferenceExists reports whether a reference code is already used.
func (r *ReservationRepo) ReferenceExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE reference_code = ?`, code).Scan(&n)
	return n > 0, err
}

// ReservationByReference loads a reservation by its reference code.
func (r *ReservationRepo) ReservationByReference(ctx context.Context, code string) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE reference_code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, err
}

// ReservationByID loads a reservation by primary key.
func (r *ReservationRepo) ReservationByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, err
}

// ListReservations returns reservations matching f, newest check-in first.
func (r *ReservationRepo) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.GuestID != nil {
		where = append(where, "guest_id = ?")
		args = append(args, *f.GuestID)
	}
	if f.RoomID != 0 {
		where = append(where, "room_id = ?")
		args = append(args, f.RoomID)
	}
	if !f.From.IsZero() {
		where = append(where, "check_in >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "check_in < ?")
		args = append(args, f.To.UTC())
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY check_in DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return queryReservations(ctx, r.db, q, args...)
}

// TransitionByReference performs a guarded status change.  The WHERE
// clause on the current status makes replays of the same transition a
// no-op.
func (r *ReservationRepo) TransitionByReference(ctx context.Context, code string, from, to model.ReservationStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE reference_code = ? AND status = ?`,
		string(to), code, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CancelStalePending cancels unpaid reservations created before cutoff.
// The candidates are locked first so the returned list matches exactly
// the rows that were updated.
func (r *ReservationRepo) CancelStalePending(ctx context.Context, before time.Time) ([]model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stale, err := queryReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE status = ? AND created_at < ? FOR UPDATE`,
		string(model.StatusPendingPayment), before.UTC())
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}
	args := []any{string(model.StatusCancelled)}
	for _, s := range stale {
		args = append(args, s.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id IN (`+placeholders(len(stale))+`)`, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	for i := range stale {
		stale[i].Status = model.StatusCancelled
	}
	return stale, nil
}

// BlockingTx returns the room-holding reservations of one room within tx.
func (r *ReservationRepo) BlockingTx(ctx context.Context, tx *sql.Tx, roomID uint64) ([]model.Reservation, error) {
	args := append(blockingStatusArgs(), roomID)
	return queryReservations(ctx, tx, `SELECT `+reservationColumns+` FROM reservations
          WHERE status IN (`+placeholders(len(model.BlockingStatuses))+`) AND room_id = ?
          ORDER BY check_in`, args...)
}

// CreateTx inserts a reservation within tx and populates its ID.  A
// reference code collision yields ErrDuplicateReference.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	var ages any
	if len(res.ChildAges) > 0 {
		b, err := json.Marshal(res.ChildAges)
		if err != nil {
			return err
		}
		ages = string(b)
	}
	const q = `INSERT INTO reservations (reference_code, guest_id, room_id, checkout_session_id, check_in, check_out,
                   duration_hours, adults, children, child_ages, source, status, total_cents, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.ReferenceCode, res.GuestID, res.RoomID, res.CheckoutSessionID, res.CheckIn.UTC(), res.CheckOut.UTC(),
		res.DurationHours, res.Adults, res.Children, ages, string(res.Source), string(res.Status), res.TotalCents,
		res.CreatedAt.UTC(), res.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateReference
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.UpdatedAt = res.CreatedAt
	return nil
}

// SetSessionTx attaches the payment gateway session to a reservation.
func (r *ReservationRepo) SetSessionTx(ctx context.Context, tx *sql.Tx, id uint64, sessionID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE reservations SET checkout_session_id = ? WHERE id = ?`, sessionID, id)
	return err
}

// ForUpdateTx loads and row-locks a reservation within tx.
func (r *ReservationRepo) ForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Reservation{}, ErrReservationNotFound
	case isLockTimeout(err):
		return model.Reservation{}, ErrLockTimeout
	}
	return res, err
}

// UpdateTx persists the mutable lifecycle fields of a reservation.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res model.Reservation) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, check_in = ?, check_out = ? WHERE id = ?`,
		string(res.Status), res.CheckIn.UTC(), res.CheckOut.UTC(), res.ID)
	return err
}
