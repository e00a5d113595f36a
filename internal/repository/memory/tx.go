package memory

import (
	"context"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

type transaction struct {
	s               *Store
	held            map[uint64]bool
	rollbackActions []func()
}

// InTx runs fn with a transaction handle.  Room locks taken through the
// handle are released when fn returns; on error every write is undone.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	trx := &transaction{s: s, held: make(map[uint64]bool)}
	defer trx.release()
	defer func() {
		if p := recover(); p != nil {
			trx.rollback()
			panic(p)
		}
	}()
	if err = fn(ctx, trx); err != nil {
		trx.rollback()
		return err
	}
	return nil
}

func (t *transaction) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.rollbackActions) - 1; i >= 0; i-- {
		t.rollbackActions[i]()
	}
	t.rollbackActions = nil
}

func (t *transaction) release() {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for id := range t.held {
		<-t.s.roomLocks[id]
	}
	t.held = nil
}

func (t *transaction) acquire(ctx context.Context, roomID uint64) error {
	if t.held[roomID] {
		return nil
	}
	t.s.mu.RLock()
	sem, ok := t.s.roomLocks[roomID]
	t.s.mu.RUnlock()
	if !ok {
		return repository.ErrRoomNotFound
	}
	timer := time.NewTimer(t.s.lockWait)
	defer timer.Stop()
	select {
	case sem <- struct{}{}:
		t.held[roomID] = true
		return nil
	case <-timer.C:
		return repository.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *transaction) LockRoom(ctx context.Context, roomID uint64) (model.Room, error) {
	if err := t.acquire(ctx, roomID); err != nil {
		return model.Room{}, err
	}
	return t.s.RoomByID(ctx, roomID)
}

func (t *transaction) BlockingReservations(_ context.Context, roomID uint64) ([]model.Reservation, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.blocking(roomID), nil
}

func (t *transaction) InsertReservation(_ context.Context, r *model.Reservation) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byRef[r.ReferenceCode]; dup {
		return repository.ErrDuplicateReference
	}
	s.nextRes++
	r.ID = s.nextRes
	r.UpdatedAt = r.CreatedAt
	s.reservations[r.ID] = cloneReservation(r)
	s.byRef[r.ReferenceCode] = r.ID
	id, ref := r.ID, r.ReferenceCode
	t.rollbackActions = append(t.rollbackActions, func() {
		delete(s.reservations, id)
		delete(s.byRef, ref)
	})
	return nil
}

// modify applies change to a stored reservation and records its undo.
func (t *transaction) modify(id uint64, change func(*model.Reservation)) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reservations[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	prev := cloneReservation(cur)
	change(cur)
	t.rollbackActions = append(t.rollbackActions, func() { s.reservations[id] = prev })
	return nil
}

func (t *transaction) SetCheckoutSession(_ context.Context, reservationID uint64, sessionID string) error {
	return t.modify(reservationID, func(r *model.Reservation) {
		sid := sessionID
		r.CheckoutSessionID = &sid
	})
}

// ReservationForUpdate serialises on the reservation's room, which is
// coarser than a row lock but keeps writers of the same room ordered.
func (t *transaction) ReservationForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	r, err := t.s.ReservationByID(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := t.acquire(ctx, r.RoomID); err != nil {
		return model.Reservation{}, err
	}
	return t.s.ReservationByID(ctx, id)
}

func (t *transaction) UpdateReservation(_ context.Context, r model.Reservation) error {
	now := t.s.now().UTC()
	return t.modify(r.ID, func(cur *model.Reservation) {
		cur.Status = r.Status
		cur.CheckIn = r.CheckIn
		cur.CheckOut = r.CheckOut
		cur.UpdatedAt = now
	})
}

func (t *transaction) UpdateRoomStatus(_ context.Context, roomID uint64, status model.RoomStatus) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return repository.ErrRoomNotFound
	}
	prev := room.Status
	room.Status = status
	t.rollbackActions = append(t.rollbackActions, func() { room.Status = prev })
	return nil
}
