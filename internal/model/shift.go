package model

import "time"

// ShiftReport is a front-desk end-of-shift cash count as stored in the
// `shift_reports` table.  Amounts are centavos.
//
// The system cash is the opening float plus walk-in (cash) sales; the
// variance is the physical count minus system cash net of expenses, so a
// shortage is negative.
type ShiftReport struct {
	ID                uint64
	StaffID           uint64
	ShiftStart        time.Time
	ShiftEnd          time.Time
	InitialCashCents  int64
	CashSalesCents    int64
	OnlineSalesCents  int64
	SystemCashCents   int64
	ExpensesCents     int64
	PhysicalCashCents int64
	VarianceCents     int64
	Remarks           string
	CreatedAt         time.Time
}
