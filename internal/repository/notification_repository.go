package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// NotificationRepo stores notifications in the `notifications` table.
type NotificationRepo struct{ db *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notificationColumns = `id, recipient_id, sender_id, type, title, message, booking_id, priority, is_read, created_at`

func scanNotification(row rowScanner) (model.Notification, error) {
	var (
		n         model.Notification
		bookingID sql.NullInt64
	)
	if err := row.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.Title, &n.Message,
		&bookingID, &n.Priority, &n.IsRead, &n.CreatedAt); err != nil {
		return model.Notification{}, err
	}
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		n.BookingID = &id
	}
	return n, nil
}

// Create inserts n and fills its ID and CreatedAt.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (recipient_id, sender_id, type, title, message, booking_id, priority, is_read, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		n.RecipientID, n.SenderID, n.Type, n.Title, n.Message, nullID(n.BookingID), n.Priority, n.IsRead, ts)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	n.CreatedAt = ts
	return nil
}

// List returns one page of a recipient's notifications, newest first.
func (r *NotificationRepo) List(ctx context.Context, f model.NotificationFilter) ([]model.Notification, int, error) {
	where := " WHERE recipient_id = ?"
	args := []any{f.RecipientID}
	if f.UnreadOnly {
		where += " AND is_read = 0"
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := "SELECT " + notificationColumns + " FROM notifications" + where + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// MarkRead flags one notification of recipientID as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID, id uint64) (model.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ? AND recipient_id = ?", id, recipientID))
	if err != nil {
		return model.Notification{}, notFound(err, "Notification not found")
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ?", id); err != nil {
		return model.Notification{}, err
	}
	n.IsRead = true
	return n, nil
}

// MarkAllRead flags every unread notification of recipientID.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0", recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, recipientID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0", recipientID).Scan(&n)
	return n, err
}

// Exists backs reminder dedupe.
func (r *NotificationRepo) Exists(ctx context.Context, recipientID, bookingID uint64, t model.NotificationType) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM notifications WHERE recipient_id = ? AND booking_id = ? AND type = ? LIMIT 1",
		recipientID, bookingID, t).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// DeleteReadBefore removes read notifications older than cutoff.
func (r *NotificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE is_read = 1 AND created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeBooking detaches keepID from bookingID and deletes the rest of the
// booking's notifications in one transaction.
func (r *NotificationRepo) PurgeBooking(ctx context.Context, bookingID, keepID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if keepID != 0 {
		if _, err := tx.ExecContext(ctx, "UPDATE notifications SET booking_id = NULL WHERE id = ?", keepID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE booking_id = ?", bookingID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *NotificationRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notifications")
	return err
}

