package payment

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Store is the persistence the reconciler needs.
type Store interface {
	ReservationByReference(ctx context.Context, code string) (model.Reservation, error)
	TransitionByReference(ctx context.Context, code string, from, to model.ReservationStatus) (bool, error)
}

// ReconcilerDeps wires a Reconciler.  Dedup and Events are optional.
type ReconcilerDeps struct {
	Store          Store
	Gateway        Gateway
	Dedup          Deduper
	Events         queue.Publisher
	Log            *logrus.Logger
	WebhookSecret  string
	GatewayTimeout time.Duration
	Now            func() time.Time
}

// Reconciler moves reservations out of Pending_Payment based on gateway
// state, pushed by webhook or pulled by Verify.  Both paths rely on the
// conditional Pending_Payment transition, so replays are no-ops.
type Reconciler struct {
	store   Store
	gateway Gateway
	dedup   Deduper
	events  queue.Publisher
	log     *logrus.Logger
	secret  string
	timeout time.Duration
	now     func() time.Time
}

func NewReconciler(d ReconcilerDeps) *Reconciler {
	r := &Reconciler{
		store:   d.Store,
		gateway: d.Gateway,
		dedup:   d.Dedup,
		events:  d.Events,
		log:     d.Log,
		secret:  d.WebhookSecret,
		timeout: d.GatewayTimeout,
		now:     d.Now,
	}
	if r.events == nil {
		r.events = queue.Nop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.timeout <= 0 {
		r.timeout = 15 * time.Second
	}
	return r
}

// WebhookAck is returned to the gateway.  It is always "received" once the
// signature checks out, whatever happened while processing.
type WebhookAck struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Event     string `json:"event,omitempty"`
}

// HandleWebhook verifies and applies one gateway event.  Only signature
// and configuration problems are returned as errors; processing failures
// are logged and acknowledged so the gateway does not retry them.
func (r *Reconciler) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookAck, error) {
	if signature == "" {
		r.log.Warn("webhook rejected: missing signature")
		return WebhookAck{}, apperr.Security("missing signature")
	}
	if r.secret == "" {
		r.log.Error("webhook rejected: webhook secret is not configured")
		return WebhookAck{}, apperr.Configuration("server configuration error")
	}
	if !VerifySignature(r.secret, body, signature) {
		r.log.Warn("webhook rejected: invalid signature")
		return WebhookAck{}, apperr.Security("invalid signature")
	}

	ack := WebhookAck{Received: true}
	ev, err := ParseWebhook(body)
	if err != nil {
		r.log.WithError(err).Error("webhook: undecodable payload")
		return ack, nil
	}
	ack.Event = ev.Type
	entry := r.log.WithFields(logrus.Fields{"event_id": ev.ID, "event": ev.Type, "reference": ev.ReferenceCode})

	if r.dedup != nil && ev.ID != "" {
		seen, err := r.dedup.Seen(ctx, ev.ID)
		if err != nil {
			entry.WithError(err).Warn("webhook: dedup lookup failed")
		} else if seen {
			entry.Info("webhook: duplicate delivery ignored")
			ack.Duplicate = true
			return ack, nil
		}
	}

	if err := r.apply(ctx, ev); err != nil {
		entry.WithError(err).Error("webhook: processing failed")
		return ack, nil
	}
	if r.dedup != nil && ev.ID != "" {
		if err := r.dedup.Mark(ctx, ev.ID); err != nil {
			entry.WithError(err).Warn("webhook: dedup mark failed")
		}
	}
	return ack, nil
}

func (r *Reconciler) apply(ctx context.Context, ev WebhookEvent) error {
	switch ev.Type {
	case EventPaymentPaid:
		if ev.ReferenceCode == "" {
			return errors.New("paid event without reference code")
		}
		return r.transition(ctx, ev.ReferenceCode, model.StatusConfirmed, "webhook")
	case EventSessionExpired:
		if ev.ReferenceCode == "" {
			return errors.New("expired event without reference code")
		}
		return r.transition(ctx, ev.ReferenceCode, model.StatusCancelled, "session expired")
	}
	r.log.WithField("event", ev.Type).Info("webhook: unhandled event type")
	return nil
}

// transition moves ref out of Pending_Payment into to.  A reservation that
// already left Pending_Payment is left alone.
func (r *Reconciler) transition(ctx context.Context, ref string, to model.ReservationStatus, reason string) error {
	ok, err := r.store.TransitionByReference(ctx, ref, model.StatusPendingPayment, to)
	if err != nil {
		return err
	}
	res, err := r.store.ReservationByReference(ctx, ref)
	if errors.Is(err, repository.ErrReservationNotFound) {
		return apperr.NotFound("reservation not found")
	}
	if err != nil {
		return err
	}
	entry := r.log.WithFields(logrus.Fields{"reference": ref, "status": res.Status, "reason": reason})
	if !ok {
		if to == model.StatusConfirmed && res.Status == model.StatusCancelled {
			entry.Warn("payment received for a cancelled reservation, refund required")
		} else {
			entry.Debug("reservation already left pending payment")
		}
		return nil
	}
	entry.Info("reservation reconciled")
	ev := queue.NewBookingEvent(queue.EventForStatus(to), res, model.StatusPendingPayment, r.now())
	ev.Reason = reason
	if err := r.events.Publish(ctx, ev); err != nil {
		entry.WithError(err).Warn("publish booking event failed")
	}
	return nil
}

// Verify polls the gateway for a reservation still waiting for payment
// and applies the outcome.  Reservations past Pending_Payment, or without
// a session, are returned untouched without calling the gateway.  Gateway
// errors are logged and leave the reservation pending.
func (r *Reconciler) Verify(ctx context.Context, ref string) (model.Reservation, error) {
	res, err := r.store.ReservationByReference(ctx, ref)
	if errors.Is(err, repository.ErrReservationNotFound) {
		return model.Reservation{}, apperr.NotFound("booking not found")
	}
	if err != nil {
		return model.Reservation{}, apperr.Internal("load reservation", err)
	}
	if res.Status != model.StatusPendingPayment || res.CheckoutSessionID == nil {
		return res, nil
	}

	gctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	sess, err := r.gateway.GetSession(gctx, *res.CheckoutSessionID)
	if err != nil {
		r.log.WithError(err).WithField("reference", ref).Warn("verify: gateway lookup failed")
		return res, nil
	}

	var to model.ReservationStatus
	switch {
	case sess.Paid():
		to = model.StatusConfirmed
	case sess.Failed():
		to = model.StatusCancelled
	default:
		return res, nil
	}
	if err := r.transition(ctx, ref, to, "verify"); err != nil {
		return model.Reservation{}, apperr.Internal("apply payment status", err)
	}
	res, err = r.store.ReservationByReference(ctx, ref)
	if err != nil {
		return model.Reservation{}, apperr.Internal("reload reservation", err)
	}
	return res, nil
}
