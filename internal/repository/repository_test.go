package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	now = func() time.Time { return fixedNow }
	t.Cleanup(func() {
		db.Close()
		now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }
	})
	return db, mock
}

func TestUserCreateNormalisesAndFillsID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("rider", "rider@mail.com", nil, "hash", model.RoleCustomer, "", "", "", "",
			true, true, false, nil, nil, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(42, 1))

	u := &model.User{Username: " rider ", Email: " Rider@Mail.COM", PasswordHash: "hash", Role: model.RoleCustomer, IsActive: true, EmailVerified: true}
	if err := NewUserRepo(db).Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if u.ID != 42 || u.Email != "rider@mail.com" || !u.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected user %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUserCreateDuplicateIsConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'uq_users_email'"})
	err := NewUserRepo(db).Create(context.Background(), &model.User{Username: "x", Email: "x@y.z"})
	if !errors.Is(err, apperr.ErrConflict) || apperr.Message(err) != "Email already exists" {
		t.Fatalf("err = %v", err)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM users WHERE id=").WithArgs(uint64(9)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := NewUserRepo(db).GetByID(context.Background(), 9)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func userRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "mobile", "password_hash", "role", "address", "city",
		"state", "pincode", "is_active", "email_verified", "mobile_verified", "email_otp_code", "email_otp_expires_at",
		"created_at", "updated_at"}).
		AddRow(1, "OwneroffixMyBike", "owner@fixmybike.com", "9876543210", "hash", "owner", "", "", "", "",
			true, true, false, "123456", fixedNow, fixedNow, fixedNow)
}

func TestUserGetByLoginScansNullableColumns(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("WHERE email=. OR username=.").
		WithArgs("owner@fixmybike.com", "Owner@FixMyBike.com").
		WillReturnRows(userRow())
	u, err := NewUserRepo(db).GetByLogin(context.Background(), "Owner@FixMyBike.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.Mobile == nil || *u.Mobile != "9876543210" || u.EmailOTP.Code == nil || !u.IsOwner() {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestUserTakenRejectsUnknownField(t *testing.T) {
	db, _ := newMock(t)
	if _, err := NewUserRepo(db).Taken(context.Background(), "password_hash", "x", 0); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestUserListAppliesSearchAndPaging(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT.* FROM users WHERE LOWER.username. LIKE").
		WithArgs("%own%", "%own%", "%own%").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(11))
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC LIMIT").
		WithArgs("%own%", "%own%", "%own%", 10, 10).
		WillReturnRows(userRow())
	users, total, err := NewUserRepo(db).List(context.Background(), model.UserFilter{Search: "OWN", Offset: 10, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 11 || len(users) != 1 {
		t.Fatalf("total=%d len=%d", total, len(users))
	}
}

var bookingCols = []string{"id", "customer_id", "service", "service_name", "date", "time_slot", "scheduled_at",
	"location", "bike_model", "bike_number", "description", "urgency", "status", "rejection_reason",
	"cost", "actual_cost", "payment_status", "payment_mode", "payment_reference", "delivery_method",
	"receipt", "created_at", "updated_at", "username", "email", "mobile"}

func TestBookingGetByIDDecodesReceiptAndCustomer(t *testing.T) {
	db, mock := newMock(t)
	receipt := []byte(`{"workDone":["chain lube"],"partsReplaced":[],"additionalNotes":"","mechanicNotes":"ok"}`)
	mock.ExpectQuery("FROM bookings b LEFT JOIN users u").WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(
			3, 8, "chain-service", "Chain Service", fixedNow, "10:30", fixedNow, "shop", "Pulsar", "KA01AB1234", "",
			"medium", "confirmed", "", "499.00", "650.50", "pending", "cash", "", nil,
			receipt, fixedNow, fixedNow, "rider", "rider@mail.com", nil))
	b, err := NewBookingRepo(db).GetByID(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != model.StatusConfirmed || b.Cost != 499 || b.ActualCost == nil || *b.ActualCost != 650.5 {
		t.Fatalf("unexpected booking %+v", b)
	}
	if b.Customer == nil || b.Customer.Username != "rider" || b.Receipt.MechanicNotes != "ok" || b.DeliveryMethod != nil {
		t.Fatalf("unexpected joins %+v", b)
	}
}

func TestBookingUpdateMissingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE bookings SET").WillReturnResult(sqlmock.NewResult(0, 0))
	err := NewBookingRepo(db).Update(context.Background(), &model.Booking{ID: 5})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestBookingCompleteCommitsBothWrites(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO service_records").WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectCommit()

	b := &model.Booking{ID: 5, Status: model.StatusCompleted}
	rec := model.SnapshotBooking(*b)
	if err := NewBookingRepo(db).Complete(context.Background(), b, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != 31 || !b.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("rec.ID = %d, updated = %v", rec.ID, b.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestBookingCompleteRollsBackOnRecordFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO service_records").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	b := &model.Booking{ID: 5}
	rec := model.SnapshotBooking(*b)
	if err := NewBookingRepo(db).Complete(context.Background(), b, &rec); err == nil {
		t.Fatal("expected an error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestBookingWhere(t *testing.T) {
	from := fixedNow
	where, args := bookingWhere(model.BookingFilter{
		CustomerID: 2,
		Statuses:   []model.Status{model.StatusConfirmed, model.StatusPending},
		From:       from,
		To:         from.Add(24 * time.Hour),
	})
	want := " WHERE b.customer_id = ? AND b.status IN (?,?) AND b.date >= ? AND b.date < ?"
	if where != want {
		t.Fatalf("where = %q", where)
	}
	if len(args) != 5 {
		t.Fatalf("args = %v", args)
	}
	if w, a := bookingWhere(model.BookingFilter{}); w != "" || a != nil {
		t.Fatalf("empty filter gave %q %v", w, a)
	}
}

func TestNotificationPurgeBookingKeepsDeletionNotice(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE notifications SET booking_id = NULL WHERE id = ").WithArgs(uint64(77)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM notifications WHERE booking_id = ").WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()
	if err := NewNotificationRepo(db).PurgeBooking(context.Background(), 5, 77); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNotificationMarkReadForeignRecipient(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM notifications WHERE id = . AND recipient_id = .").
		WithArgs(uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := NewNotificationRepo(db).MarkRead(context.Background(), 2, 1)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestNotificationExistsAndCleanup(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepo(db)
	mock.ExpectQuery("SELECT 1 FROM notifications").
		WithArgs(uint64(4), uint64(9), model.NotifyTomorrowReminder).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	ok, err := repo.Exists(context.Background(), 4, 9, model.NotifyTomorrowReminder)
	if err != nil || ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	cutoff := fixedNow.AddDate(0, 0, -30)
	mock.ExpectExec("DELETE FROM notifications WHERE is_read = 1 AND created_at <").WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := repo.DeleteReadBefore(context.Background(), cutoff)
	if err != nil || n != 2 {
		t.Fatalf("DeleteReadBefore = %d, %v", n, err)
	}
}

func TestServiceRecordCreate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO service_records").WillReturnResult(sqlmock.NewResult(12, 1))
	rec := model.SnapshotBooking(model.Booking{ID: 3, Cost: 300})
	if err := NewServiceRecordRepo(db).Create(context.Background(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != 12 || rec.CostActual != 300 {
		t.Fatalf("unexpected record %+v", rec)
	}
}
