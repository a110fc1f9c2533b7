package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// BookingRepo stores bookings in the `bookings` table.  The receipt is
// kept as a JSON column.  All timestamps are written in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingSelect = `SELECT b.id, b.customer_id, b.service, b.service_name, b.date, b.time_slot, b.scheduled_at,
	b.location, b.bike_model, b.bike_number, b.description, b.urgency, b.status, b.rejection_reason,
	b.cost, b.actual_cost, b.payment_status, b.payment_mode, b.payment_reference, b.delivery_method,
	b.receipt, b.created_at, b.updated_at, u.username, u.email, u.mobile
	FROM bookings b LEFT JOIN users u ON u.id = b.customer_id`

func scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b                         model.Booking
		actual                    sql.NullFloat64
		payMode, delivery, mobile sql.NullString
		username, email           sql.NullString
		receipt                   []byte
	)
	err := row.Scan(&b.ID, &b.CustomerID, &b.Service, &b.ServiceName, &b.Date, &b.Time, &b.ScheduledAt,
		&b.Location, &b.BikeModel, &b.BikeNumber, &b.Description, &b.Urgency, &b.Status, &b.RejectionReason,
		&b.Cost, &actual, &b.PaymentStatus, &payMode, &b.PaymentReference, &delivery,
		&receipt, &b.CreatedAt, &b.UpdatedAt, &username, &email, &mobile)
	if err != nil {
		return model.Booking{}, err
	}
	if actual.Valid {
		v := actual.Float64
		b.ActualCost = &v
	}
	b.PaymentMode = strPtr(payMode)
	b.DeliveryMethod = strPtr(delivery)
	if len(receipt) > 0 {
		if err := json.Unmarshal(receipt, &b.Receipt); err != nil {
			return model.Booking{}, fmt.Errorf("decode receipt of booking %d: %w", b.ID, err)
		}
	}
	if username.Valid {
		b.Customer = &model.UserRef{ID: b.CustomerID, Username: username.String, Email: email.String, Mobile: strPtr(mobile)}
	}
	return b, nil
}

// Create inserts b and fills its ID and timestamps.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	receipt, err := json.Marshal(b.Receipt)
	if err != nil {
		return err
	}
	ts := now()
	const q = `INSERT INTO bookings (customer_id, service, service_name, date, time_slot, scheduled_at, location,
		bike_model, bike_number, description, urgency, status, rejection_reason, cost, actual_cost,
		payment_status, payment_mode, payment_reference, delivery_method, receipt, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		b.CustomerID, b.Service, b.ServiceName, b.Date.UTC(), b.Time, b.ScheduledAt.UTC(), b.Location,
		b.BikeModel, b.BikeNumber, b.Description, b.Urgency, b.Status, b.RejectionReason, b.Cost, nullFloat(b.ActualCost),
		b.PaymentStatus, nullString(b.PaymentMode), b.PaymentReference, nullString(b.DeliveryMethod), receipt, ts, ts)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.CreatedAt, b.UpdatedAt = ts, ts
	return nil
}

// GetByID fetches a booking with its customer summary.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, bookingSelect+" WHERE b.id = ?", id))
	if err != nil {
		return model.Booking{}, notFound(err, "Booking not found")
	}
	return b, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Update overwrites every mutable column of b.  Concurrent writers are not
// detected; the last update wins.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking) error {
	return updateBooking(ctx, r.db, b)
}

// Complete saves the finalised booking b and appends its service record
// rec in one transaction.  Neither write is visible unless both succeed.
func (r *BookingRepo) Complete(ctx context.Context, b *model.Booking, rec *model.ServiceRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := updateBooking(ctx, tx, b); err != nil {
		return err
	}
	if err := insertRecord(ctx, tx, rec); err != nil {
		return fmt.Errorf("record service history: %w", err)
	}
	return tx.Commit()
}

func updateBooking(ctx context.Context, ex execer, b *model.Booking) error {
	receipt, err := json.Marshal(b.Receipt)
	if err != nil {
		return err
	}
	ts := now()
	const q = `UPDATE bookings SET service=?, service_name=?, date=?, time_slot=?, scheduled_at=?, location=?,
		bike_model=?, bike_number=?, description=?, urgency=?, status=?, rejection_reason=?, cost=?, actual_cost=?,
		payment_status=?, payment_mode=?, payment_reference=?, delivery_method=?, receipt=?, updated_at=?
		WHERE id=?`
	res, err := ex.ExecContext(ctx, q,
		b.Service, b.ServiceName, b.Date.UTC(), b.Time, b.ScheduledAt.UTC(), b.Location,
		b.BikeModel, b.BikeNumber, b.Description, b.Urgency, b.Status, b.RejectionReason, b.Cost, nullFloat(b.ActualCost),
		b.PaymentStatus, nullString(b.PaymentMode), b.PaymentReference, nullString(b.DeliveryMethod), receipt, ts, b.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.ErrNotFound, "Booking not found")
	}
	b.UpdatedAt = ts
	return nil
}

// Delete removes a booking.  Linked notifications cascade.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.ErrNotFound, "Booking not found")
	}
	return nil
}

// bookingWhere renders f as a WHERE clause.
func bookingWhere(f model.BookingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.CustomerID != 0 {
		conds = append(conds, "b.customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		conds = append(conds, "b.status = ?")
		args = append(args, f.Status)
	}
	if len(f.Statuses) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.Statuses)), ",")
		conds = append(conds, "b.status IN ("+marks+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if f.Location != "" {
		conds = append(conds, "b.location = ?")
		args = append(args, f.Location)
	}
	if !f.From.IsZero() {
		conds = append(conds, "b.date >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "b.date < ?")
		args = append(args, f.To.UTC())
	}
	if !f.ScheduledFrom.IsZero() {
		conds = append(conds, "b.scheduled_at >= ?")
		args = append(args, f.ScheduledFrom.UTC())
	}
	if !f.ScheduledTo.IsZero() {
		conds = append(conds, "b.scheduled_at <= ?")
		args = append(args, f.ScheduledTo.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns matching bookings ordered by date and creation, newest first.
func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	where, args := bookingWhere(f)
	rows, err := r.db.QueryContext(ctx, bookingSelect+where+" ORDER BY b.date DESC, b.created_at DESC, b.id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteAll removes every booking.
func (r *BookingRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM bookings")
	return err
}
