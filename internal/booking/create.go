package booking

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/availability"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/pricing"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// CreateRequest is a web booking.  Either RoomType or RoomID must be set.
// ClientTotalCents is only compared against the computed total for audit.
type CreateRequest struct {
	RoomType         model.RoomType
	RoomID           uint64
	CheckIn          time.Time
	DurationHours    int
	Party            Party
	ClientTotalCents *int64
	GuestID          *uint64
	Billing          *payment.Billing
	LockToken        string
}

// Booking is the result of a successful creation.
type Booking struct {
	Reservation model.Reservation
	Room        model.Room
	Quote       pricing.Quote
	CheckoutURL string
}

// Create books a room for a web guest and opens a checkout session.
//
// The availability scan only picks a room.  The reservation is inserted
// after the room row is locked and the conflict check repeated, and the
// checkout session is requested inside the same transaction so a gateway
// failure rolls the insert back.
func (s *Service) Create(ctx context.Context, caller Caller, req CreateRequest) (_ Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Create")
	defer func() { endSpan(span, err) }()

	if caller.UserID == 0 {
		return Booking{}, apperr.Security("authentication required")
	}
	party, defaulted, err := normalizeParty(req.Party)
	if err != nil {
		return Booking{}, err
	}
	if req.RoomType == "" && req.RoomID == 0 {
		verr := apperr.Validation("room type is required")
		verr.AddField("roomType", "is required")
		return Booking{}, verr
	}
	if req.RoomType != "" && !req.RoomType.Valid() {
		verr := apperr.Validation("unknown room type")
		verr.AddField("roomType", "is not a known room type")
		return Booking{}, verr
	}
	if err := availability.ValidateCheckIn(req.CheckIn, req.DurationHours, s.now(), s.cfg.PastGrace, s.cfg.MaxAdvance); err != nil {
		return Booking{}, err
	}
	if defaulted {
		s.log.WithFields(logrus.Fields{"user_id": caller.UserID, "children": party.Children}).
			Warn("children declared without ages, defaulting every age to 0")
	}

	s.sweepQuietly(ctx)

	free, err := s.avail.FindAvailable(ctx, availability.Query{
		Type:          req.RoomType,
		RoomID:        req.RoomID,
		CheckIn:       req.CheckIn,
		DurationHours: req.DurationHours,
		LockToken:     req.LockToken,
	})
	if err != nil {
		return Booking{}, err
	}
	if len(free) == 0 {
		if req.RoomID != 0 {
			return Booking{}, apperr.Conflict("selected room is not available for the requested time")
		}
		return Booking{}, apperr.Conflict("no rooms available for the selected time")
	}
	room, err := s.Room(ctx, free[0].RoomID)
	if err != nil {
		return Booking{}, err
	}
	span.SetAttributes(attribute.Int64("room.id", int64(room.ID)), attribute.String("room.type", string(room.Type)))

	quote, err := pricing.Compute(room.Rates, req.DurationHours, party.ChildAges)
	if err != nil {
		return Booking{}, err
	}
	if req.ClientTotalCents != nil && *req.ClientTotalCents != quote.TotalCents {
		s.log.WithFields(logrus.Fields{
			"user_id":      caller.UserID,
			"room_id":      room.ID,
			"client_total": *req.ClientTotalCents,
			"server_total": quote.TotalCents,
		}).Warn("client supplied total discarded")
	}

	code, err := s.refs.Next(ctx, PrefixWeb, 8)
	if err != nil {
		return Booking{}, err
	}
	span.SetAttributes(attribute.String("booking.reference", code))

	res := model.Reservation{
		ReferenceCode: code,
		GuestID:       s.attributeGuest(caller, req.GuestID),
		RoomID:        room.ID,
		CheckIn:       req.CheckIn.UTC(),
		CheckOut:      req.CheckIn.UTC().Add(time.Duration(req.DurationHours) * time.Hour),
		DurationHours: req.DurationHours,
		Adults:        party.Adults,
		Children:      party.Children,
		ChildAges:     party.ChildAges,
		Source:        model.SourceWeb,
		Status:        model.StatusPendingPayment,
		TotalCents:    quote.TotalCents,
		CreatedAt:     s.now().UTC(),
	}

	var checkoutURL string
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := s.lockRoom(ctx, tx, room.ID)
		if err != nil {
			return err
		}
		if !locked.Status.Bookable() || locked.SoftLocked(s.now(), req.LockToken) {
			return apperr.Conflict("room is no longer available")
		}
		if err := s.recheck(ctx, tx, locked.ID, 0, res.CheckIn, res.CheckOut); err != nil {
			return err
		}
		if err := insert(ctx, tx, &res); err != nil {
			return err
		}
		sess, err := s.openCheckout(ctx, res, locked, req.Billing)
		if err != nil {
			return err
		}
		if err := tx.SetCheckoutSession(ctx, res.ID, sess.ID); err != nil {
			return apperr.Internal("attach checkout session", err)
		}
		res.CheckoutSessionID = &sess.ID
		checkoutURL = sess.CheckoutURL
		return nil
	})
	if err != nil {
		return Booking{}, txError("create booking", err)
	}

	s.log.WithFields(logrus.Fields{
		"reference": res.ReferenceCode,
		"room":      room.Number,
		"total":     pricing.FormatPHP(res.TotalCents),
	}).Info("booking created, awaiting payment")
	s.publish(ctx, queue.NewBookingEvent(queue.EventCreated, res, "", s.now()))
	return Booking{Reservation: res, Room: room, Quote: quote, CheckoutURL: checkoutURL}, nil
}

// openCheckout requests the gateway session, bounded by GatewayTimeout so
// a slow gateway cannot hold the room lock indefinitely.
func (s *Service) openCheckout(ctx context.Context, res model.Reservation, room model.Room, billing *payment.Billing) (payment.Session, error) {
	if s.gateway == nil {
		return payment.Session{}, apperr.Configuration("payment gateway is not configured")
	}
	timeout := s.cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metadata := map[string]string{
		"reference_code": res.ReferenceCode,
		"room_id":        strconv.FormatUint(room.ID, 10),
		"room_number":    room.Number,
	}
	if res.GuestID != nil {
		metadata["guest_id"] = strconv.FormatUint(*res.GuestID, 10)
	}
	local := res.CheckIn.In(s.loc)
	sess, err := s.gateway.CreateCheckoutSession(gctx, payment.CheckoutRequest{
		LineItems: []payment.LineItem{{
			Name:        fmt.Sprintf("%s - %dh", room.DisplayName(), res.DurationHours),
			AmountCents: res.TotalCents,
			Currency:    s.currency(),
			Description: "Check-in: " + local.Format("2006-01-02 15:04"),
			Quantity:    1,
		}},
		Description: "Booking " + res.ReferenceCode,
		SuccessURL:  s.frontend + s.pay.SuccessPath + "?reference=" + url.QueryEscape(res.ReferenceCode),
		CancelURL:   s.frontend + s.pay.CancelPath + "?cancelled=true",
		MethodTypes: s.pay.MethodTypes,
		Billing:     billing,
		Metadata:    metadata,
	})
	if err != nil {
		s.log.WithError(err).WithField("reference", res.ReferenceCode).Error("checkout session creation failed, rolling back")
		if apperr.Is(err, apperr.KindConfiguration) {
			return payment.Session{}, err
		}
		return payment.Session{}, apperr.External("payment gateway unavailable, please try again", err)
	}
	return sess, nil
}

func (s *Service) currency() string {
	if s.pay.Currency == "" {
		return "PHP"
	}
	return s.pay.Currency
}

// WalkInRequest is a front-desk booking starting now.
type WalkInRequest struct {
	RoomID           uint64
	DurationHours    int
	Party            Party
	GuestID          *uint64
	ClientTotalCents *int64
	LockToken        string
}

// CreateWalkIn books an Available room from now for DurationHours and
// checks the guest in immediately.  No payment session is opened.
func (s *Service) CreateWalkIn(ctx context.Context, caller Caller, req WalkInRequest) (_ Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.CreateWalkIn")
	defer func() { endSpan(span, err) }()

	if !caller.Role.IsStaff() {
		return Booking{}, apperr.Security("staff access required")
	}
	party, _, err := normalizeParty(req.Party)
	if err != nil {
		return Booking{}, err
	}
	verr := apperr.Validation("invalid walk-in")
	if req.RoomID == 0 {
		verr.AddField("roomId", "is required")
	}
	if !model.ValidDuration(req.DurationHours) {
		verr.AddField("duration", "must be one of 3h, 6h, 12h or 24h")
	}
	if len(verr.Fields) > 0 {
		return Booking{}, verr
	}

	room, err := s.Room(ctx, req.RoomID)
	if err != nil {
		return Booking{}, err
	}
	quote, err := pricing.Compute(room.Rates, req.DurationHours, party.ChildAges)
	if err != nil {
		return Booking{}, err
	}
	if req.ClientTotalCents != nil && *req.ClientTotalCents != quote.TotalCents {
		s.log.WithFields(logrus.Fields{
			"staff_id":     caller.UserID,
			"room_id":      room.ID,
			"client_total": *req.ClientTotalCents,
			"server_total": quote.TotalCents,
		}).Warn("client supplied total discarded")
	}
	code, err := s.refs.Next(ctx, PrefixWalkIn, 4)
	if err != nil {
		return Booking{}, err
	}

	now := s.now().UTC()
	res := model.Reservation{
		ReferenceCode: code,
		RoomID:        room.ID,
		CheckIn:       now,
		CheckOut:      now.Add(time.Duration(req.DurationHours) * time.Hour),
		DurationHours: req.DurationHours,
		Adults:        party.Adults,
		Children:      party.Children,
		ChildAges:     party.ChildAges,
		Source:        model.SourceWalkIn,
		Status:        model.StatusCheckedIn,
		TotalCents:    quote.TotalCents,
		CreatedAt:     now,
	}
	if req.GuestID != nil && *req.GuestID != 0 {
		if caller.Role.CanBookOnBehalf() {
			id := *req.GuestID
			res.GuestID = &id
		} else {
			s.log.WithFields(logrus.Fields{"user_id": caller.UserID, "role": caller.Role}).
				Warn("ignored guest override from a caller without booking rights")
		}
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := s.lockRoom(ctx, tx, room.ID)
		if err != nil {
			return err
		}
		if locked.Status != model.RoomAvailable {
			return apperr.Conflict(fmt.Sprintf("room %s is %s", locked.Number, locked.Status))
		}
		if locked.SoftLocked(now, req.LockToken) {
			return apperr.Conflict("room is held by someone else")
		}
		if err := s.recheck(ctx, tx, locked.ID, 0, res.CheckIn, res.CheckOut); err != nil {
			return err
		}
		if err := insert(ctx, tx, &res); err != nil {
			return err
		}
		if err := tx.UpdateRoomStatus(ctx, locked.ID, model.RoomOccupied); err != nil {
			return apperr.Internal("mark room occupied", err)
		}
		room.Status = model.RoomOccupied
		return nil
	})
	if err != nil {
		return Booking{}, txError("create walk-in", err)
	}
	if req.LockToken != "" {
		if _, err := s.store.ClearRoomLock(ctx, room.ID, req.LockToken); err != nil {
			s.log.WithError(err).WithField("room_id", room.ID).Warn("release hold after walk-in failed")
		}
	}

	s.log.WithFields(logrus.Fields{"reference": res.ReferenceCode, "room": room.Number}).Info("walk-in checked in")
	s.publish(ctx, queue.NewBookingEvent(queue.EventWalkIn, res, "", now))
	return Booking{Reservation: res, Room: room, Quote: quote}, nil
}
