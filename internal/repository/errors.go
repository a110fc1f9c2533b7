// Package repository implements the service store interfaces on MySQL.
// Driver errors are translated here so higher layers only ever see the
// apperr taxonomy: a missing row becomes apperr.ErrNotFound and a
// duplicate key (MySQL error 1062) becomes apperr.ErrConflict.
package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
)

const errDuplicateEntry = 1062

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}

// notFound maps sql.ErrNoRows to an apperr.ErrNotFound with msg.
func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.ErrNotFound, msg)
	}
	return err
}

// duplicateUser names the field behind a users unique key violation.
func duplicateUser(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "username"):
		return apperr.New(apperr.ErrConflict, "Username already exists")
	case strings.Contains(msg, "email"):
		return apperr.New(apperr.ErrConflict, "Email already exists")
	}
	return apperr.New(apperr.ErrConflict, "User already exists")
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }
