package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// ShiftRepo stores front-desk shift reports.
type ShiftRepo struct{ DB *sql.DB }

func NewShiftRepo(db *sql.DB) *ShiftRepo { return &ShiftRepo{DB: db} }

func (r *ShiftRepo) InsertShiftReport(ctx context.Context, rep *model.ShiftReport) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO shift_reports (staff_id, shift_start, shift_end, initial_cash_cents, cash_sales_cents,
		 online_sales_cents, system_cash_cents, expenses_cents, physical_cash_cents, variance_cents, remarks)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rep.StaffID, rep.ShiftStart.UTC(), rep.ShiftEnd.UTC(), rep.InitialCashCents, rep.CashSalesCents,
		rep.OnlineSalesCents, rep.SystemCashCents, rep.ExpensesCents, rep.PhysicalCashCents, rep.VarianceCents, rep.Remarks)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rep.ID = uint64(id)
	return nil
}
