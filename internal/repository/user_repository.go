package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// UserRepo stores users in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, username, email, mobile, password_hash, role, address, city, state, pincode,
	is_active, email_verified, mobile_verified, email_otp_code, email_otp_expires_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u      model.User
		mobile sql.NullString
		code   sql.NullString
		exp    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &mobile, &u.PasswordHash, &u.Role,
		&u.Profile.Address, &u.Profile.City, &u.Profile.State, &u.Profile.Pincode,
		&u.IsActive, &u.EmailVerified, &u.MobileVerified, &code, &exp, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Mobile = strPtr(mobile)
	u.EmailOTP.Code = strPtr(code)
	u.EmailOTP.ExpiresAt = timePtr(exp)
	return u, nil
}

// Create inserts u and fills its ID and timestamps.  The email is stored
// lower-cased.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Username = strings.TrimSpace(u.Username)
	ts := now()
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (username, email, mobile, password_hash, role, address, city, state, pincode,
			is_active, email_verified, mobile_verified, email_otp_code, email_otp_expires_at, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.Username, u.Email, nullString(u.Mobile), u.PasswordHash, u.Role,
		u.Profile.Address, u.Profile.City, u.Profile.State, u.Profile.Pincode,
		u.IsActive, u.EmailVerified, u.MobileVerified,
		nullString(u.EmailOTP.Code), nullTime(u.EmailOTP.ExpiresAt), ts, ts)
	if err != nil {
		if isDuplicate(err) {
			return duplicateUser(err)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.CreatedAt, u.UpdatedAt = ts, ts
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, notFound(err, "User not found")
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "id=?", id)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, "email=?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getOne(ctx, "username=?", strings.TrimSpace(username))
}

// GetByLogin fetches a user whose email or username equals the input.
func (r *UserRepo) GetByLogin(ctx context.Context, emailOrUsername string) (model.User, error) {
	v := strings.TrimSpace(emailOrUsername)
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? OR username=? LIMIT 1",
		strings.ToLower(v), v)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, notFound(err, "User not found")
	}
	return u, nil
}

// Owners lists owner accounts, oldest first.
func (r *UserRepo) Owners(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role=? ORDER BY created_at ASC, id ASC", model.RoleOwner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update writes every mutable column of u and refreshes UpdatedAt.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	ts := now()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET username=?, email=?, mobile=?, password_hash=?, role=?, address=?, city=?, state=?, pincode=?,
			is_active=?, email_verified=?, mobile_verified=?, email_otp_code=?, email_otp_expires_at=?, updated_at=?
		WHERE id=?`,
		strings.TrimSpace(u.Username), strings.ToLower(strings.TrimSpace(u.Email)), nullString(u.Mobile),
		u.PasswordHash, u.Role, u.Profile.Address, u.Profile.City, u.Profile.State, u.Profile.Pincode,
		u.IsActive, u.EmailVerified, u.MobileVerified,
		nullString(u.EmailOTP.Code), nullTime(u.EmailOTP.ExpiresAt), ts, u.ID)
	if err != nil {
		if isDuplicate(err) {
			return duplicateUser(err)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for an unchanged row, so confirm the row exists.
		if _, err := r.GetByID(ctx, u.ID); err != nil {
			return err
		}
	}
	u.UpdatedAt = ts
	return nil
}

// List returns one page of users, newest first, and the total match count.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	where := ""
	var args []any
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = " WHERE LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR mobile LIKE ?"
		args = append(args, like, like, like)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := "SELECT " + userColumns + " FROM users" + where + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

var takenColumns = map[string]string{"username": "username", "email": "email", "mobile": "mobile"}

// Taken reports whether another user already holds value in field.
func (r *UserRepo) Taken(ctx context.Context, field, value string, exceptID uint64) (bool, error) {
	col, ok := takenColumns[field]
	if !ok {
		return false, apperr.Newf(apperr.ErrValidation, "unknown field %q", field)
	}
	if field == "email" {
		value = strings.ToLower(strings.TrimSpace(value))
	}
	var n int
	err := r.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM users WHERE %s=? AND id<>?", col), value, exceptID).Scan(&n)
	return n > 0, err
}

// DeleteAll removes every user.  Bookings cascade.
func (r *UserRepo) DeleteAll(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM users")
	return err
}
