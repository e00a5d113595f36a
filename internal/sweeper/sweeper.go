// Package sweeper cancels reservations left unpaid past the payment
// window so their rooms return to the pool.
package sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
)

// Store is the single write the sweeper performs.
type Store interface {
	CancelStalePending(ctx context.Context, before time.Time) ([]model.Reservation, error)
}

// Sweeper is safe for concurrent use; the store's bulk update is the only
// synchronisation needed.
type Sweeper struct {
	store      Store
	events     queue.Publisher
	log        *logrus.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// New returns a Sweeper cancelling Pending_Payment reservations created
// more than staleAfter ago.  events may be nil.
func New(store Store, events queue.Publisher, log *logrus.Logger, staleAfter time.Duration, now func() time.Time) *Sweeper {
	if events == nil {
		events = queue.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{store: store, events: events, log: log, staleAfter: staleAfter, now: now}
}

// Sweep cancels every stale pending reservation and returns how many were
// cancelled.  Running it again right away finds nothing.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.now()
	cancelled, err := s.store.CancelStalePending(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}
	if len(cancelled) == 0 {
		return 0, nil
	}
	s.log.WithField("count", len(cancelled)).Info("cancelled stale pending reservations")
	for _, r := range cancelled {
		r.Status = model.StatusCancelled
		ev := queue.NewBookingEvent(queue.EventCancelled, r, model.StatusPendingPayment, now)
		ev.Reason = "payment window expired"
		if err := s.events.Publish(ctx, ev); err != nil {
			s.log.WithError(err).WithField("reference", r.ReferenceCode).Warn("publish booking event failed")
		}
	}
	return int64(len(cancelled)), nil
}

// Schedule registers the sweep on c under spec (for example "@every 1m").
// An empty spec registers nothing.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	if spec == "" {
		return 0, nil
	}
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("scheduled sweep failed")
		}
	})
}
