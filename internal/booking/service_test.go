package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/logging"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/repository/memory"
)

// Seeded room ids: 3, 4 and 5 are the Standard rooms.
const room201S uint64 = 3

var (
	manila = time.FixedZone("PHT", 8*3600)
	guest  = Caller{UserID: 42, Role: model.RoleGuest}
	desk   = Caller{UserID: 7, Role: model.RoleFrontDesk}
)

type testEnv struct {
	store  *memory.Store
	gw     *payment.Sandbox
	events *queue.Recorder
	svc    *Service
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		store:  memory.NewSeeded(2 * time.Second),
		gw:     payment.NewSandbox("https://sandbox.test"),
		events: queue.NewRecorder(256),
		now:    time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC),
	}
	e.svc = New(Deps{
		Store:   e.store,
		Gateway: e.gw,
		Events:  e.events,
		Log:     logging.Discard(),
		Booking: config.DefaultBookingConfig(),
		Payment: config.PaymentConfig{
			Currency:    "PHP",
			MethodTypes: []string{"qrph"},
			SuccessPath: "/booking-success",
			CancelPath:  "/booking",
		},
		FrontendURL: "https://hotel.test",
		Location:    manila,
		Now:         func() time.Time { return e.now },
	})
	return e
}

func standardRequest(checkIn time.Time) CreateRequest {
	return CreateRequest{
		RoomType:      model.RoomTypeStandard,
		CheckIn:       checkIn,
		DurationHours: 3,
		Party:         Party{Adults: 2},
	}
}

func jan10(hour, min int) time.Time { return time.Date(2026, 1, 10, hour, min, 0, 0, manila) }

func paidWebhook(eventID, ref string) []byte {
	return []byte(`{"data":{"id":"` + eventID + `","attributes":{"type":"checkout_session.payment.paid","data":{"id":"cs","attributes":{"metadata":{"reference_code":"` + ref + `"}}}}}}`)
}

func TestCreateEndToEnd(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	clientTotal := int64(100)

	req := standardRequest(jan10(14, 0))
	req.Party = Party{Adults: 2, Children: 1, ChildAges: []int{8}}
	req.ClientTotalCents = &clientTotal
	b, err := e.svc.Create(ctx, guest, req)
	require.NoError(t, err)

	res := b.Reservation
	assert.Equal(t, model.RoomTypeStandard, b.Room.Type)
	assert.Equal(t, int64(70000+15000), res.TotalCents)
	assert.Equal(t, model.StatusPendingPayment, res.Status)
	assert.True(t, strings.HasPrefix(res.ReferenceCode, "BKG-"))
	assert.Equal(t, res.CheckIn.Add(3*time.Hour), res.CheckOut)
	require.NotNil(t, res.GuestID)
	assert.Equal(t, uint64(42), *res.GuestID)
	require.NotNil(t, res.CheckoutSessionID)
	assert.NotEmpty(t, b.CheckoutURL)

	sent, ok := e.gw.Request(*res.CheckoutSessionID)
	require.True(t, ok)
	require.Len(t, sent.LineItems, 1)
	assert.Equal(t, int64(85000), sent.LineItems[0].AmountCents)
	assert.Equal(t, "Standard Room 201S - 3h", sent.LineItems[0].Name)
	assert.Equal(t, "Check-in: 2026-01-10 14:00", sent.LineItems[0].Description)
	assert.Equal(t, res.ReferenceCode, sent.Metadata["reference_code"])
	assert.Equal(t, "42", sent.Metadata["guest_id"])
	assert.Equal(t, "https://hotel.test/booking-success?reference="+res.ReferenceCode, sent.SuccessURL)
	assert.Equal(t, "https://hotel.test/booking?cancelled=true", sent.CancelURL)

	stored, err := e.store.ReservationByReference(ctx, res.ReferenceCode)
	require.NoError(t, err)
	assert.Equal(t, *res.CheckoutSessionID, *stored.CheckoutSessionID)

	rec := payment.NewReconciler(payment.ReconcilerDeps{
		Store:         e.store,
		Gateway:       e.gw,
		Events:        e.events,
		Log:           logging.Discard(),
		WebhookSecret: "whsk",
	})
	body := paidWebhook("evt_1", res.ReferenceCode)
	for i := 0; i < 2; i++ {
		ack, err := rec.HandleWebhook(ctx, body, payment.Sign("whsk", body))
		require.NoError(t, err)
		assert.True(t, ack.Received)
		got, err := e.svc.ByReference(ctx, res.ReferenceCode)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, got.Status)
	}

	var types []string
	for _, ev := range e.events.Drain() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{queue.EventCreated, queue.EventConfirmed}, types)
}

func TestConcurrentCreatesForSameRoom(t *testing.T) {
	e := newTestEnv(t)
	const n = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := standardRequest(jan10(14, 0))
			req.RoomID = room201S
			caller := Caller{UserID: uint64(100 + i), Role: model.RoleGuest}
			_, err := e.svc.Create(context.Background(), caller, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.Is(err, apperr.KindConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)

	held, err := e.store.BlockingReservations(context.Background(), []uint64{room201S})
	require.NoError(t, err)
	assert.Len(t, held[room201S], 1)
	assert.Equal(t, int64(1), e.gw.Created.Load())
}

func TestGatewayFailureRollsBack(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	req := standardRequest(jan10(14, 0))
	req.RoomID = room201S

	e.gw.Err = errors.New("connection reset")
	_, err := e.svc.Create(ctx, guest, req)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindExternal, ae.Kind)
	assert.True(t, ae.Retryable)

	list, err := e.store.ListReservations(ctx, repository.ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, e.events.Drain())

	e.gw.Err = nil
	b, err := e.svc.Create(ctx, guest, req)
	require.NoError(t, err)
	assert.Equal(t, room201S, b.Room.ID)
}

func TestGatewayTimeoutRollsBack(t *testing.T) {
	e := newTestEnv(t)
	e.svc.cfg.GatewayTimeout = 20 * time.Millisecond
	e.svc.gateway = slowGateway{}

	_, err := e.svc.Create(context.Background(), guest, standardRequest(jan10(14, 0)))
	assert.True(t, apperr.Is(err, apperr.KindExternal))

	list, err := e.store.ListReservations(context.Background(), repository.ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

type slowGateway struct{}

func (slowGateway) CreateCheckoutSession(ctx context.Context, _ payment.CheckoutRequest) (payment.Session, error) {
	<-ctx.Done()
	return payment.Session{}, ctx.Err()
}

func (slowGateway) GetSession(ctx context.Context, _ string) (payment.Session, error) {
	return payment.Session{}, errors.New("not implemented")
}

func TestCleaningBuffer(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	first := standardRequest(jan10(14, 0))
	first.RoomID = room201S
	_, err := e.svc.Create(ctx, guest, first)
	require.NoError(t, err)

	tooEarly := standardRequest(jan10(17, 25))
	tooEarly.RoomID = room201S
	_, err = e.svc.Create(ctx, guest, tooEarly)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	onTime := standardRequest(jan10(17, 30))
	onTime.RoomID = room201S
	_, err = e.svc.Create(ctx, guest, onTime)
	assert.NoError(t, err)
}

func TestAutoAssignSkipsBookedRooms(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	var rooms []string
	for i := 0; i < 3; i++ {
		b, err := e.svc.Create(ctx, guest, standardRequest(jan10(14, 0)))
		require.NoError(t, err)
		rooms = append(rooms, b.Room.Number)
	}
	assert.Equal(t, []string{"201S", "202S", "203S"}, rooms)

	_, err := e.svc.Create(ctx, guest, standardRequest(jan10(14, 0)))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSelectedRoomRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	wrongType := standardRequest(jan10(14, 0))
	wrongType.RoomType = model.RoomTypeDeluxe
	wrongType.RoomID = room201S
	_, err := e.svc.Create(ctx, guest, wrongType)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	require.NoError(t, e.store.UpdateRoomStatus(ctx, room201S, model.RoomDirty))
	dirty := standardRequest(jan10(14, 0))
	dirty.RoomID = room201S
	_, err = e.svc.Create(ctx, guest, dirty)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	missing := standardRequest(jan10(14, 0))
	missing.RoomID = 999
	_, err = e.svc.Create(ctx, guest, missing)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tests := map[string]func(r *CreateRequest){
		"no adults":         func(r *CreateRequest) { r.Party.Adults = 0 },
		"age mismatch":      func(r *CreateRequest) { r.Party = Party{Adults: 1, Children: 2, ChildAges: []int{9}} },
		"misaligned":        func(r *CreateRequest) { r.CheckIn = jan10(14, 3) },
		"past":              func(r *CreateRequest) { r.CheckIn = e.now.Add(-time.Hour) },
		"too far ahead":     func(r *CreateRequest) { r.CheckIn = e.now.AddDate(1, 1, 0) },
		"bad duration":      func(r *CreateRequest) { r.DurationHours = 5 },
		"unknown room type": func(r *CreateRequest) { r.RoomType = "Penthouse" },
		"no room":           func(r *CreateRequest) { r.RoomType = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := standardRequest(jan10(14, 0))
			mutate(&req)
			_, err := e.svc.Create(ctx, guest, req)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	_, err := e.svc.Create(ctx, Caller{}, standardRequest(jan10(14, 0)))
	assert.True(t, apperr.Is(err, apperr.KindSecurity))
}

func TestChildAgeLeniency(t *testing.T) {
	e := newTestEnv(t)
	req := standardRequest(jan10(14, 0))
	req.Party = Party{Adults: 2, Children: 1}

	b, err := e.svc.Create(context.Background(), guest, req)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, b.Reservation.ChildAges)
	assert.Equal(t, int64(70000), b.Reservation.TotalCents)
}

func TestGuestOverride(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	other := uint64(99)

	req := standardRequest(jan10(14, 0))
	req.GuestID = &other
	b, err := e.svc.Create(ctx, guest, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), *b.Reservation.GuestID)

	b, err = e.svc.Create(ctx, desk, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), *b.Reservation.GuestID)

	housekeeping := Caller{UserID: 8, Role: model.RoleHousekeeping}
	b, err = e.svc.Create(ctx, housekeeping, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), *b.Reservation.GuestID)
}

func TestWalkIn(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	req := WalkInRequest{RoomID: room201S, DurationHours: 6, Party: Party{Adults: 1, Children: 1, ChildAges: []int{12}}}

	_, err := e.svc.CreateWalkIn(ctx, guest, req)
	assert.True(t, apperr.Is(err, apperr.KindSecurity))

	b, err := e.svc.CreateWalkIn(ctx, desk, req)
	require.NoError(t, err)
	res := b.Reservation
	assert.True(t, strings.HasPrefix(res.ReferenceCode, "WLK-"))
	assert.Equal(t, model.StatusCheckedIn, res.Status)
	assert.Equal(t, model.SourceWalkIn, res.Source)
	assert.Nil(t, res.GuestID)
	assert.Nil(t, res.CheckoutSessionID)
	assert.Equal(t, e.now, res.CheckIn)
	assert.Equal(t, int64(110000+15000), res.TotalCents)
	assert.Zero(t, e.gw.Created.Load())

	room, err := e.store.RoomByID(ctx, room201S)
	require.NoError(t, err)
	assert.Equal(t, model.RoomOccupied, room.Status)

	_, err = e.svc.CreateWalkIn(ctx, desk, req)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	evs := e.events.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, queue.EventWalkIn, evs[0].Type)
}

func TestStatusTransitions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	b, err := e.svc.Create(ctx, guest, standardRequest(jan10(14, 0)))
	require.NoError(t, err)
	id := b.Reservation.ID

	_, err = e.svc.UpdateStatus(ctx, desk, id, model.StatusConfirmed)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = e.svc.UpdateStatus(ctx, guest, id, model.StatusCancelled)
	assert.True(t, apperr.Is(err, apperr.KindSecurity))
	_, err = e.svc.UpdateStatus(ctx, desk, id, model.StatusCompleted)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	ok, err := e.store.TransitionByReference(ctx, b.Reservation.ReferenceCode, model.StatusPendingPayment, model.StatusConfirmed)
	require.NoError(t, err)
	require.True(t, ok)

	e.now = e.now.Add(26 * time.Hour)
	in, err := e.svc.UpdateStatus(ctx, desk, id, model.StatusCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, e.now, in.CheckIn)
	assert.Equal(t, e.now.Add(3*time.Hour), in.CheckOut)
	room, _ := e.store.RoomByID(ctx, b.Room.ID)
	assert.Equal(t, model.RoomOccupied, room.Status)

	e.now = e.now.Add(2 * time.Hour)
	done, err := e.svc.UpdateStatus(ctx, desk, id, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, e.now, done.CheckOut)
	room, _ = e.store.RoomByID(ctx, b.Room.ID)
	assert.Equal(t, model.RoomDirty, room.Status)

	_, err = e.svc.UpdateStatus(ctx, desk, id, model.StatusCancelled)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = e.svc.UpdateStatus(ctx, desk, 999, model.StatusCancelled)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCancelFreesRoom(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	req := standardRequest(jan10(14, 0))
	req.RoomID = room201S

	b, err := e.svc.Create(ctx, guest, req)
	require.NoError(t, err)
	_, err = e.svc.UpdateStatus(ctx, desk, b.Reservation.ID, model.StatusCancelled)
	require.NoError(t, err)

	_, err = e.svc.Create(ctx, guest, req)
	assert.NoError(t, err)
}

func TestStaleBookingsFreedBeforeSearch(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	req := standardRequest(jan10(14, 0))
	req.RoomID = room201S

	_, err := e.svc.Create(ctx, guest, req)
	require.NoError(t, err)

	e.now = e.now.Add(6 * time.Minute)
	free, err := e.svc.CheckAvailability(ctx, model.RoomTypeStandard, jan10(14, 0), 3)
	require.NoError(t, err)
	assert.Len(t, free, 3)
}

func TestHolds(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	hold, err := e.svc.HoldRoom(ctx, desk, room201S, 0)
	require.NoError(t, err)
	assert.Equal(t, e.now.Add(DefaultHoldMinutes*time.Minute), hold.ExpiresAt)

	_, err = e.svc.HoldRoom(ctx, desk, room201S, 5)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = e.svc.HoldRoom(ctx, desk, room201S, MaxHoldMinutes+1)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	req := standardRequest(jan10(14, 0))
	req.RoomID = room201S
	_, err = e.svc.Create(ctx, guest, req)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	free, err := e.svc.CheckAvailability(ctx, model.RoomTypeStandard, jan10(14, 0), 3)
	require.NoError(t, err)
	assert.Len(t, free, 2)

	assert.True(t, apperr.Is(e.svc.ReleaseHold(ctx, desk, room201S, "nope"), apperr.KindNotFound))
	require.NoError(t, e.svc.ReleaseHold(ctx, desk, room201S, hold.Token))

	_, err = e.svc.Create(ctx, guest, req)
	assert.NoError(t, err)
}

func TestWalkInWithOwnHold(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	hold, err := e.svc.HoldRoom(ctx, desk, room201S, 10)
	require.NoError(t, err)

	_, err = e.svc.CreateWalkIn(ctx, desk, WalkInRequest{RoomID: room201S, DurationHours: 3, Party: Party{Adults: 1}})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = e.svc.CreateWalkIn(ctx, desk, WalkInRequest{RoomID: room201S, DurationHours: 3, Party: Party{Adults: 1}, LockToken: hold.Token})
	require.NoError(t, err)

	room, err := e.store.RoomByID(ctx, room201S)
	require.NoError(t, err)
	assert.Nil(t, room.LockedBy)
}

func TestRoomBoardAndStats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	walk, err := e.svc.CreateWalkIn(ctx, desk, WalkInRequest{RoomID: room201S, DurationHours: 3, Party: Party{Adults: 1}})
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, guest, standardRequest(jan10(14, 0)))
	require.NoError(t, err)
	_, err = e.svc.UpdateRoomStatus(ctx, desk, 1, model.RoomMaintenance)
	require.NoError(t, err)

	board, err := e.svc.RoomBoard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 9)
	for _, v := range board {
		if v.Room.ID != room201S {
			assert.Nil(t, v.Stay)
			continue
		}
		// The web booking lands on the occupied room: its window starts
		// after the walk-in leaves.
		require.NotNil(t, v.Stay)
		assert.Equal(t, walk.Reservation.ReferenceCode, v.Stay.ReferenceCode)
		assert.Equal(t, 3*time.Hour, v.TimeLeft)
		assert.Equal(t, 1, v.Upcoming)
	}

	st, err := e.svc.Stats(ctx, desk)
	require.NoError(t, err)
	assert.Equal(t, 9, st.TotalRooms)
	assert.Equal(t, 1, st.RoomsByStatus[model.RoomOccupied])
	assert.Equal(t, 1, st.RoomsByStatus[model.RoomMaintenance])
	assert.Equal(t, 11.1, st.OccupancyPercent)
	assert.Equal(t, 1, st.TodayBookings)
	assert.Equal(t, walk.Reservation.TotalCents, st.TodayRevenueCents)
	assert.Equal(t, 1, st.PendingPayments)

	_, err = e.svc.Stats(ctx, guest)
	assert.True(t, apperr.Is(err, apperr.KindSecurity))
	_, err = e.svc.UpdateRoomStatus(ctx, desk, 1, "Flooded")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLookups(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	b, err := e.svc.Create(ctx, guest, standardRequest(jan10(14, 0)))
	require.NoError(t, err)

	mine, err := e.svc.MyBookings(ctx, guest)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.Reservation.ReferenceCode, mine[0].ReferenceCode)

	none, err := e.svc.MyBookings(ctx, Caller{UserID: 1000, Role: model.RoleGuest})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = e.svc.ByReference(ctx, "BKG-NOPE")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	info, err := e.svc.RoomType(ctx, "deluxe-room")
	require.NoError(t, err)
	assert.Equal(t, model.RoomTypeDeluxe, info.Type)
	_, err = e.svc.RoomType(ctx, "penthouse")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

// seed stores a 3 hour reservation directly, bypassing the engine.
func (e *testEnv) seed(ref string, roomID uint64, src model.Source, st model.ReservationStatus, checkIn time.Time, cents int64) uint64 {
	return e.store.AddReservation(model.Reservation{
		ReferenceCode: ref,
		RoomID:        roomID,
		CheckIn:       checkIn.UTC(),
		CheckOut:      checkIn.Add(3 * time.Hour).UTC(),
		DurationHours: 3,
		Adults:        1,
		Source:        src,
		Status:        st,
		TotalCents:    cents,
		CreatedAt:     e.now,
	})
}

func TestCheckInRechecksMovedWindow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	evening := e.seed("BKG-EVE", room201S, model.SourceWeb, model.StatusConfirmed, jan10(18, 0), 70000)
	noon := e.seed("BKG-NOON", room201S, model.SourceWeb, model.StatusConfirmed, jan10(12, 0), 70000)
	e.now = jan10(11, 0).UTC()

	// Checking the evening guest in early would run 11:00-14:00 over the
	// noon booking.
	_, err := e.svc.UpdateStatus(ctx, desk, evening, model.StatusCheckedIn)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	r, err := e.store.ReservationByID(ctx, evening)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)
	assert.True(t, r.CheckIn.Equal(jan10(18, 0)))
	room, _ := e.store.RoomByID(ctx, room201S)
	assert.Equal(t, model.RoomAvailable, room.Status)
	assert.Empty(t, e.events.Drain())

	// The noon guest arriving early still clears the evening stay and its
	// cleaning buffer.
	in, err := e.svc.UpdateStatus(ctx, desk, noon, model.StatusCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, e.now, in.CheckIn)
	assert.Equal(t, e.now.Add(3*time.Hour), in.CheckOut)
}

func TestStatsCountSettledBookingsOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	today := func(h int) time.Time { return time.Date(2026, 1, 9, h, 0, 0, 0, manila) }
	e.seed("BKG-PEND", 4, model.SourceWeb, model.StatusPendingPayment, today(18), 70000)
	e.seed("BKG-PAID", 5, model.SourceWeb, model.StatusConfirmed, today(20), 110000)
	e.seed("BKG-GONE", 6, model.SourceWeb, model.StatusCancelled, today(19), 90000)

	st, err := e.svc.Stats(ctx, desk)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TodayBookings)
	assert.Equal(t, int64(110000), st.TodayRevenueCents)
	assert.Equal(t, 1, st.PendingPayments)
}

func TestShiftReport(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	today := func(h int) time.Time { return time.Date(2026, 1, 9, h, 0, 0, 0, manila) }
	e.seed("WLK-DONE", 1, model.SourceWalkIn, model.StatusCompleted, today(9), 85000)
	e.seed("WLK-VOID", 2, model.SourceWalkIn, model.StatusCancelled, today(10), 70000)
	e.seed("BKG-PAID", 4, model.SourceWeb, model.StatusConfirmed, today(18), 110000)
	e.seed("BKG-PEND", 5, model.SourceWeb, model.StatusPendingPayment, today(20), 70000)
	e.seed("BKG-NEXT", 6, model.SourceWeb, model.StatusConfirmed, jan10(10, 0), 90000)

	_, err := e.svc.CurrentShift(ctx, guest)
	assert.True(t, apperr.Is(err, apperr.KindSecurity))

	sh, err := e.svc.CurrentShift(ctx, desk)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-09", sh.Date)
	assert.Equal(t, int64(500000), sh.InitialCashCents)
	assert.Equal(t, int64(85000), sh.CashSalesCents)
	assert.Equal(t, int64(110000), sh.OnlineSalesCents)
	assert.Equal(t, int64(585000), sh.SystemCashCents)
	assert.Equal(t, 2, sh.TotalBookings)

	_, err = e.svc.SubmitShift(ctx, desk, ShiftSubmission{PhysicalCashCents: -1, ExpensesCents: -1})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Fields, "physicalCash")
	assert.Contains(t, ae.Fields, "expenses")
	assert.Empty(t, e.store.ShiftReports())

	rep, err := e.svc.SubmitShift(ctx, desk, ShiftSubmission{PhysicalCashCents: 570000, ExpensesCents: 10000, Remarks: "short"})
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), rep.VarianceCents)
	assert.Equal(t, desk.UserID, rep.StaffID)
	assert.True(t, rep.ShiftStart.Equal(today(0)))
	assert.Equal(t, e.now, rep.ShiftEnd)

	stored := e.store.ShiftReports()
	require.Len(t, stored, 1)
	assert.Equal(t, rep.ID, stored[0].ID)
	assert.Equal(t, "short", stored[0].Remarks)
}

func TestAvailableRooms(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.svc.UpdateRoomStatus(ctx, desk, 1, model.RoomMaintenance)
	require.NoError(t, err)
	_, err = e.svc.HoldRoom(ctx, desk, room201S, 10)
	require.NoError(t, err)

	rooms, err := e.svc.AvailableRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 7)
	assert.Equal(t, "102V", rooms[0].Number)
	assert.Equal(t, "501S", rooms[len(rooms)-1].Number)
	for i := 1; i < len(rooms); i++ {
		assert.LessOrEqual(t, rooms[i-1].Rates[3], rooms[i].Rates[3])
	}
}

func TestBookingCount(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	b, err := e.svc.Create(ctx, guest, standardRequest(jan10(14, 0)))
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, guest, standardRequest(jan10(20, 0)))
	require.NoError(t, err)
	_, err = e.svc.UpdateStatus(ctx, desk, b.Reservation.ID, model.StatusCancelled)
	require.NoError(t, err)

	n, err := e.svc.BookingCount(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.svc.BookingCount(ctx, Caller{})
	assert.True(t, apperr.Is(err, apperr.KindSecurity))
}
