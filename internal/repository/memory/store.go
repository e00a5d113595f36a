// Package memory is an in-process implementation of the repository
// contracts.  It backs STORAGE_DRIVER=memory and the engine tests.  Room
// row locks are emulated with one single-slot semaphore per room; writes
// made inside a transaction are applied immediately and undone in reverse
// order on rollback.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

type refreshToken struct {
	userID    uint64
	expires   time.Time
	revoked   bool
	revokedAt time.Time
}

// Store keeps rooms, reservations, users, refresh tokens and shift reports
// in memory.
type Store struct {
	mu           sync.RWMutex
	types        map[model.RoomType]model.RoomTypeInfo
	rooms        map[uint64]*model.Room
	roomLocks    map[uint64]chan struct{}
	reservations map[uint64]*model.Reservation
	byRef        map[string]uint64
	users        map[uint64]*model.User
	byEmail      map[string]uint64
	tokens       map[string]*refreshToken
	shifts       []model.ShiftReport

	nextRoom, nextRes, nextUser uint64

	lockWait time.Duration
	now      func() time.Time
}

// New returns an empty store.  lockWait bounds LockRoom.
func New(lockWait time.Duration) *Store {
	return &Store{
		types:        make(map[model.RoomType]model.RoomTypeInfo),
		rooms:        make(map[uint64]*model.Room),
		roomLocks:    make(map[uint64]chan struct{}),
		reservations: make(map[uint64]*model.Reservation),
		byRef:        make(map[string]uint64),
		users:        make(map[uint64]*model.User),
		byEmail:      make(map[string]uint64),
		tokens:       make(map[string]*refreshToken),
		lockWait:     lockWait,
		now:          time.Now,
	}
}

// SetClock replaces the clock used to expire refresh tokens.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// AddRoomType registers a catalog entry.
func (s *Store) AddRoomType(info model.RoomTypeInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[info.Type] = info
}

// AddRoom creates an Available room of type t and returns its id.  The
// room type must have been added first for the room to carry rates.
func (s *Store) AddRoom(number string, t model.RoomType) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoom++
	id := s.nextRoom
	s.rooms[id] = &model.Room{
		ID:     id,
		Number: number,
		Type:   t,
		Name:   model.Room{Type: t, Number: number}.DisplayName(),
		Status: model.RoomAvailable,
	}
	s.roomLocks[id] = make(chan struct{}, 1)
	return id
}

// AddReservation stores r as-is (including CreatedAt) and returns its id.
// It is meant for seeding and tests; production writes go through InTx.
func (s *Store) AddReservation(r model.Reservation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRes++
	r.ID = s.nextRes
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	s.reservations[r.ID] = cloneReservation(&r)
	s.byRef[r.ReferenceCode] = r.ID
	return r.ID
}

func cloneReservation(r *model.Reservation) *model.Reservation {
	c := *r
	if r.ChildAges != nil {
		c.ChildAges = append([]int(nil), r.ChildAges...)
	}
	if r.GuestID != nil {
		g := *r.GuestID
		c.GuestID = &g
	}
	if r.CheckoutSessionID != nil {
		sid := *r.CheckoutSessionID
		c.CheckoutSessionID = &sid
	}
	return &c
}

// roomCopy returns the room joined with its type's rate card.
func (s *Store) roomCopy(r *model.Room) model.Room {
	c := *r
	if info, ok := s.types[r.Type]; ok {
		c.Rates = make(model.RateCard, len(info.Rates))
		for k, v := range info.Rates {
			c.Rates[k] = v
		}
	}
	if r.LockExpiresAt != nil {
		t := *r.LockExpiresAt
		c.LockExpiresAt = &t
	}
	if r.LockedBy != nil {
		b := *r.LockedBy
		c.LockedBy = &b
	}
	return c
}

func (s *Store) RoomTypes(_ context.Context) ([]model.RoomTypeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.RoomTypeInfo
	for _, t := range model.RoomTypes {
		if info, ok := s.types[t]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *Store) sortedRooms(keep func(*model.Room) bool) []model.Room {
	var out []model.Room
	for _, r := range s.rooms {
		if keep(r) {
			out = append(out, s.roomCopy(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (s *Store) Rooms(_ context.Context) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedRooms(func(*model.Room) bool { return true }), nil
}

func (s *Store) RoomsByType(_ context.Context, t model.RoomType) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedRooms(func(r *model.Room) bool { return r.Type == t }), nil
}

func (s *Store) RoomByID(_ context.Context, id uint64) (model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return model.Room{}, repository.ErrRoomNotFound
	}
	return s.roomCopy(r), nil
}

func (s *Store) UpdateRoomStatus(_ context.Context, id uint64, status model.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return repository.ErrRoomNotFound
	}
	r.Status = status
	return nil
}

func (s *Store) SetRoomLock(_ context.Context, id uint64, token string, expires, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return false, repository.ErrRoomNotFound
	}
	if r.LockExpiresAt != nil && r.LockExpiresAt.After(now) && (r.LockedBy == nil || *r.LockedBy != token) {
		return false, nil
	}
	exp := expires.UTC()
	tok := token
	r.LockExpiresAt = &exp
	r.LockedBy = &tok
	return true, nil
}

func (s *Store) ClearRoomLock(_ context.Context, id uint64, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok || r.LockedBy == nil || *r.LockedBy != token {
		return false, nil
	}
	r.LockExpiresAt = nil
	r.LockedBy = nil
	return true, nil
}

func (s *Store) CountRoomsByStatus(_ context.Context) (map[model.RoomStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.RoomStatus]int)
	for _, r := range s.rooms {
		out[r.Status]++
	}
	return out, nil
}

func (s *Store) blocking(roomID uint64) []model.Reservation {
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.RoomID == roomID && r.Status.Blocking() {
			out = append(out, *cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out
}

func (s *Store) BlockingReservations(_ context.Context, roomIDs []uint64) (map[uint64][]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64][]model.Reservation)
	for _, id := range roomIDs {
		if list := s.blocking(id); len(list) > 0 {
			out[id] = list
		}
	}
	return out, nil
}

func (s *Store) ReferenceExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byRef[code]
	return ok, nil
}

func (s *Store) ReservationByReference(_ context.Context, code string) (model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRef[code]
	if !ok {
		return model.Reservation{}, repository.ErrReservationNotFound
	}
	return *cloneReservation(s.reservations[id]), nil
}

func (s *Store) ReservationByID(_ context.Context, id uint64) (model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, repository.ErrReservationNotFound
	}
	return *cloneReservation(r), nil
}

func (s *Store) ListReservations(_ context.Context, f repository.ReservationFilter) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		switch {
		case f.Status != "" && r.Status != f.Status:
			continue
		case f.GuestID != nil && (r.GuestID == nil || *r.GuestID != *f.GuestID):
			continue
		case f.RoomID != 0 && r.RoomID != f.RoomID:
			continue
		case !f.From.IsZero() && r.CheckIn.Before(f.From):
			continue
		case !f.To.IsZero() && !r.CheckIn.Before(f.To):
			continue
		}
		out = append(out, *cloneReservation(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckIn.Equal(out[j].CheckIn) {
			return out[i].CheckIn.After(out[j].CheckIn)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) TransitionByReference(_ context.Context, code string, from, to model.ReservationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[code]
	if !ok {
		return false, nil
	}
	r := s.reservations[id]
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *Store) CancelStalePending(_ context.Context, before time.Time) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.Status == model.StatusPendingPayment && r.CreatedAt.Before(before) {
			r.Status = model.StatusCancelled
			out = append(out, *cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := s.byEmail[u.Email]; ok {
		return repository.ErrEmailExists
	}
	s.nextUser++
	u.ID = s.nextUser
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	c := *u
	s.users[u.ID] = &c
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return *s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return *u, nil
}

func (s *Store) UpdateProfile(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if id, taken := s.byEmail[email]; taken && id != u.ID {
		return repository.ErrEmailExists
	}
	delete(s.byEmail, cur.Email)
	s.byEmail[email] = u.ID
	cur.FirstName, cur.LastName, cur.Email, cur.Phone = u.FirstName, u.LastName, email, u.Phone
	cur.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	cur.PasswordHash = hash
	cur.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ListStaff(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.User
	for _, u := range s.users {
		if u.Role != model.RoleGuest {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.ID < b.ID
	})
	return out, nil
}

// InsertShiftReport appends rep and sets its ID.
func (s *Store) InsertShiftReport(_ context.Context, rep *model.ShiftReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep.ID = uint64(len(s.shifts) + 1)
	rep.CreatedAt = s.now().UTC()
	s.shifts = append(s.shifts, *rep)
	return nil
}

// ShiftReports returns the stored shift reports in submission order.
func (s *Store) ShiftReports() []model.ShiftReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ShiftReport(nil), s.shifts...)
}

func (s *Store) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = &refreshToken{userID: userID, expires: exp}
	return nil
}

func (s *Store) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.revoked || s.now().After(t.expires) {
		return 0, repository.ErrTokenInvalid
	}
	return t.userID, nil
}

func (s *Store) RevokeByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok && !t.revoked {
		t.revoked, t.revokedAt = true, s.now().UTC()
	}
	return nil
}

func (s *Store) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.userID == userID && !t.revoked {
			t.revoked, t.revokedAt = true, s.now().UTC()
		}
	}
	return nil
}

func (s *Store) PurgeRefresh(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for hash, t := range s.tokens {
		if t.expires.Before(cutoff) || (t.revoked && t.revokedAt.Before(cutoff)) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

var (
	_ repository.Store      = (*Store)(nil)
	_ repository.UserStore  = (*Store)(nil)
	_ repository.TokenStore = (*Store)(nil)
)
