package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// ServiceRecordRepo appends to the insert-only `service_records` table.
type ServiceRecordRepo struct{ db *sql.DB }

func NewServiceRecordRepo(db *sql.DB) *ServiceRecordRepo { return &ServiceRecordRepo{db: db} }

// Create inserts rec and fills its ID and CreatedAt.
func (r *ServiceRecordRepo) Create(ctx context.Context, rec *model.ServiceRecord) error {
	return insertRecord(ctx, r.db, rec)
}

func insertRecord(ctx context.Context, ex execer, rec *model.ServiceRecord) error {
	receipt, err := json.Marshal(rec.Receipt)
	if err != nil {
		return err
	}
	ts := now()
	res, err := ex.ExecContext(ctx,
		`INSERT INTO service_records (booking_id, customer_id, service, service_name, date, time_slot, location,
			bike_model, bike_number, description, cost_quoted, cost_actual, payment_mode, payment_status,
			payment_reference, receipt, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.BookingID, rec.CustomerID, rec.Service, rec.ServiceName, rec.Date.UTC(), rec.Time, rec.Location,
		rec.BikeModel, rec.BikeNumber, rec.Description, rec.CostQuoted, rec.CostActual, nullString(rec.PaymentMode),
		rec.PaymentStatus, rec.PaymentReference, receipt, ts)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	rec.CreatedAt = ts
	return nil
}

// ListByBooking returns the snapshots of one booking, oldest first.
func (r *ServiceRecordRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.ServiceRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, booking_id, customer_id, service, service_name, date, time_slot, location, bike_model, bike_number,
			description, cost_quoted, cost_actual, payment_mode, payment_status, payment_reference, receipt, created_at
		FROM service_records WHERE booking_id = ? ORDER BY id ASC`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ServiceRecord{}
	for rows.Next() {
		var (
			rec     model.ServiceRecord
			mode    sql.NullString
			receipt []byte
		)
		if err := rows.Scan(&rec.ID, &rec.BookingID, &rec.CustomerID, &rec.Service, &rec.ServiceName, &rec.Date,
			&rec.Time, &rec.Location, &rec.BikeModel, &rec.BikeNumber, &rec.Description, &rec.CostQuoted,
			&rec.CostActual, &mode, &rec.PaymentStatus, &rec.PaymentReference, &receipt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.PaymentMode = strPtr(mode)
		if len(receipt) > 0 {
			if err := json.Unmarshal(receipt, &rec.Receipt); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ServiceRecordRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM service_records")
	return err
}
