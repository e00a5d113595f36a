package booking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

const maxShiftRemarks = 500

// Shift is the running cash position of the current business day.  Walk-in
// bookings are paid at the desk and count as cash; web bookings were paid
// online.
type Shift struct {
	Date             string    `json:"date"`
	Start            time.Time `json:"start"`
	InitialCashCents int64     `json:"initialCashCents"`
	CashSalesCents   int64     `json:"cashSalesCents"`
	OnlineSalesCents int64     `json:"onlineSalesCents"`
	SystemCashCents  int64     `json:"systemCashCents"`
	TotalBookings    int       `json:"totalBookings"`
}

// ShiftSubmission is the drawer count entered at the end of a shift.
type ShiftSubmission struct {
	PhysicalCashCents int64
	ExpensesCents     int64
	Remarks           string
}

// CurrentShift totals today's settled bookings, "today" being the hotel's
// local day, split by channel.
func (s *Service) CurrentShift(ctx context.Context, caller Caller) (Shift, error) {
	if err := requireStaff(caller); err != nil {
		return Shift{}, err
	}
	local := s.now().In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	today, err := s.store.ListReservations(ctx, repository.ReservationFilter{From: dayStart.UTC(), To: dayStart.AddDate(0, 0, 1).UTC()})
	if err != nil {
		return Shift{}, apperr.Internal("list bookings", err)
	}
	sh := Shift{
		Date:             dayStart.Format("2006-01-02"),
		Start:            dayStart,
		InitialCashCents: s.cfg.ShiftFloat,
	}
	for _, r := range today {
		if !r.Status.Settled() {
			continue
		}
		sh.TotalBookings++
		switch r.Source {
		case model.SourceWalkIn:
			sh.CashSalesCents += r.TotalCents
		case model.SourceWeb:
			sh.OnlineSalesCents += r.TotalCents
		}
	}
	sh.SystemCashCents = sh.InitialCashCents + sh.CashSalesCents
	return sh, nil
}

// SubmitShift closes the caller's shift against the drawer count and
// stores the report.
func (s *Service) SubmitShift(ctx context.Context, caller Caller, sub ShiftSubmission) (model.ShiftReport, error) {
	if err := requireStaff(caller); err != nil {
		return model.ShiftReport{}, err
	}
	verr := apperr.Validation("invalid shift report")
	if sub.PhysicalCashCents < 0 {
		verr.AddField("physicalCash", "must not be negative")
	}
	if sub.ExpensesCents < 0 {
		verr.AddField("expenses", "must not be negative")
	}
	if len([]rune(sub.Remarks)) > maxShiftRemarks {
		verr.AddField("remarks", "must be at most 500 characters")
	}
	if len(verr.Fields) > 0 {
		return model.ShiftReport{}, verr
	}

	sh, err := s.CurrentShift(ctx, caller)
	if err != nil {
		return model.ShiftReport{}, err
	}
	rep := model.ShiftReport{
		StaffID:           caller.UserID,
		ShiftStart:        sh.Start.UTC(),
		ShiftEnd:          s.now().UTC(),
		InitialCashCents:  sh.InitialCashCents,
		CashSalesCents:    sh.CashSalesCents,
		OnlineSalesCents:  sh.OnlineSalesCents,
		SystemCashCents:   sh.SystemCashCents,
		ExpensesCents:     sub.ExpensesCents,
		PhysicalCashCents: sub.PhysicalCashCents,
		VarianceCents:     sub.PhysicalCashCents - (sh.SystemCashCents - sub.ExpensesCents),
		Remarks:           sub.Remarks,
	}
	if err := s.store.InsertShiftReport(ctx, &rep); err != nil {
		return model.ShiftReport{}, apperr.Internal("store shift report", err)
	}
	entry := s.log.WithFields(logrus.Fields{
		"staff_id":       caller.UserID,
		"date":           sh.Date,
		"variance_cents": rep.VarianceCents,
	})
	if rep.VarianceCents != 0 {
		entry.Warn("shift closed with a cash variance")
	} else {
		entry.Info("shift closed")
	}
	return rep, nil
}
