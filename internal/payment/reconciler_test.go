package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/logging"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository/memory"
)

const testSecret = "whsk_test"

type fixture struct {
	store   *memory.Store
	gateway *Sandbox
	events  *queue.Recorder
	rec     *Reconciler
}

func newFixture(t *testing.T, dedup Deduper) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewSeeded(time.Second),
		gateway: NewSandbox("http://sandbox.test"),
		events:  queue.NewRecorder(16),
	}
	f.rec = NewReconciler(ReconcilerDeps{
		Store:         f.store,
		Gateway:       f.gateway,
		Dedup:         dedup,
		Events:        f.events,
		Log:           logging.Discard(),
		WebhookSecret: testSecret,
	})
	return f
}

// addPending stores a pending reservation backed by a fresh sandbox session.
func (f *fixture) addPending(t *testing.T, ref string) string {
	t.Helper()
	sess, err := f.gateway.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Metadata: map[string]string{"reference_code": ref},
	})
	require.NoError(t, err)
	checkIn := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	f.store.AddReservation(model.Reservation{
		ReferenceCode:     ref,
		RoomID:            3,
		CheckoutSessionID: &sess.ID,
		CheckIn:           checkIn,
		CheckOut:          checkIn.Add(3 * time.Hour),
		DurationHours:     3,
		Adults:            2,
		Source:            model.SourceWeb,
		Status:            model.StatusPendingPayment,
		TotalCents:        70000,
		CreatedAt:         time.Now().UTC(),
	})
	return sess.ID
}

func (f *fixture) status(t *testing.T, ref string) model.ReservationStatus {
	t.Helper()
	r, err := f.store.ReservationByReference(context.Background(), ref)
	require.NoError(t, err)
	return r.Status
}

func TestWebhookConfirmsOnceAndIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.addPending(t, "BKG-1")
	body := paidBody("evt_1", "BKG-1")

	ack, err := f.rec.HandleWebhook(context.Background(), body, Sign(testSecret, body))
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.Equal(t, EventPaymentPaid, ack.Event)
	assert.Equal(t, model.StatusConfirmed, f.status(t, "BKG-1"))

	ack, err = f.rec.HandleWebhook(context.Background(), body, Sign(testSecret, body))
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.Equal(t, model.StatusConfirmed, f.status(t, "BKG-1"))

	evs := f.events.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, queue.EventConfirmed, evs[0].Type)
	assert.Equal(t, string(model.StatusPendingPayment), evs[0].PrevStatus)
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	f := newFixture(t, nil)
	f.addPending(t, "BKG-1")
	body := paidBody("evt_1", "BKG-1")

	_, err := f.rec.HandleWebhook(context.Background(), body, "")
	assert.True(t, apperr.Is(err, apperr.KindSecurity))

	_, err = f.rec.HandleWebhook(context.Background(), body, Sign("wrong", body))
	assert.True(t, apperr.Is(err, apperr.KindSecurity))
	assert.Equal(t, model.StatusPendingPayment, f.status(t, "BKG-1"))

	unconfigured := NewReconciler(ReconcilerDeps{Store: f.store, Gateway: f.gateway, Log: logging.Discard()})
	_, err = unconfigured.HandleWebhook(context.Background(), body, Sign(testSecret, body))
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestWebhookAcknowledgesWhatItCannotApply(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string][]byte{
		"unknown type":      []byte(`{"data":{"id":"evt_2","attributes":{"type":"payment.refunded","data":{}}}}`),
		"unknown reference": paidBody("evt_3", "BKG-NOPE"),
		"no reference":      []byte(`{"data":{"id":"evt_4","attributes":{"type":"checkout_session.payment.paid","data":{}}}}`),
		"not json":          []byte(`garbage`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			ack, err := f.rec.HandleWebhook(context.Background(), body, Sign(testSecret, body))
			require.NoError(t, err)
			assert.True(t, ack.Received)
		})
	}
	assert.Empty(t, f.events.Drain())
}

func TestWebhookExpiredCancels(t *testing.T) {
	f := newFixture(t, nil)
	f.addPending(t, "BKG-1")
	body := []byte(`{"data":{"id":"evt_9","attributes":{"type":"checkout_session.expired","data":{"id":"cs_1","attributes":{"metadata":{"reference_code":"BKG-1"}}}}}}`)

	_, err := f.rec.HandleWebhook(context.Background(), body, Sign(testSecret, body))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, f.status(t, "BKG-1"))
}

func TestPaidAfterCancelLeavesCancelled(t *testing.T) {
	f := newFixture(t, nil)
	f.addPending(t, "BKG-1")
	_, err := f.store.TransitionByReference(context.Background(), "BKG-1", model.StatusPendingPayment, model.StatusCancelled)
	require.NoError(t, err)

	body := paidBody("evt_1", "BKG-1")
	_, err = f.rec.HandleWebhook(context.Background(), body, Sign(testSecret, body))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, f.status(t, "BKG-1"))
}

func TestRedisDedupShortCircuitsReplays(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := newFixture(t, NewRedisDeduper(rdb, time.Hour))
	f.addPending(t, "BKG-1")
	body := paidBody("evt_1", "BKG-1")

	ack, err := f.rec.HandleWebhook(context.Background(), body, Sign(testSecret, body))
	require.NoError(t, err)
	assert.False(t, ack.Duplicate)
	assert.True(t, mr.Exists("dedup:webhook:evt_1"))

	ack, err = f.rec.HandleWebhook(context.Background(), body, Sign(testSecret, body))
	require.NoError(t, err)
	assert.True(t, ack.Duplicate)

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists("dedup:webhook:evt_1"))
}

func TestVerifyOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("paid", func(t *testing.T) {
		f := newFixture(t, nil)
		sid := f.addPending(t, "BKG-1")
		f.gateway.MarkPaid(sid)
		r, err := f.rec.Verify(ctx, "BKG-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, r.Status)
		assert.Len(t, f.events.Drain(), 1)
	})

	t.Run("failed", func(t *testing.T) {
		f := newFixture(t, nil)
		sid := f.addPending(t, "BKG-1")
		f.gateway.MarkFailed(sid)
		r, err := f.rec.Verify(ctx, "BKG-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, r.Status)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t, nil)
		sid := f.addPending(t, "BKG-1")
		f.gateway.Expire(sid)
		r, err := f.rec.Verify(ctx, "BKG-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, r.Status)
	})

	t.Run("still open", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addPending(t, "BKG-1")
		r, err := f.rec.Verify(ctx, "BKG-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPendingPayment, r.Status)
	})

	t.Run("gateway down", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addPending(t, "BKG-1")
		f.gateway.Err = errors.New("connection refused")
		r, err := f.rec.Verify(ctx, "BKG-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPendingPayment, r.Status)
	})

	t.Run("unknown reference", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.rec.Verify(ctx, "BKG-NOPE")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestVerifySkipsGatewayOnceSettled(t *testing.T) {
	f := newFixture(t, nil)
	sid := f.addPending(t, "BKG-1")
	f.gateway.MarkPaid(sid)
	_, err := f.rec.Verify(context.Background(), "BKG-1")
	require.NoError(t, err)

	// A broken gateway no longer matters: the reservation is settled.
	f.gateway.Err = errors.New("should not be called")
	r, err := f.rec.Verify(context.Background(), "BKG-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)
}
