package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/utils"
)

// Main owner account created by BootstrapOwner.
const (
	OwnerUsername = "OwneroffixMyBike"
	OwnerEmail    = "owner@fixmybike.com"
	OwnerMobile   = "9876543210"
)

// UserService manages profiles, the owner account and the admin reset.
type UserService struct {
	users         UserStore
	bookings      BookingStore
	notes         NotificationStore
	records       ServiceRecordStore
	bcryptCost    int
	ownerPassword string
}

// NewUserService wires the service.  ownerPassword is the password given
// to a bootstrapped owner.
func NewUserService(users UserStore, bookings BookingStore, notes NotificationStore, records ServiceRecordStore, bcryptCost int, ownerPassword string) *UserService {
	return &UserService{
		users:         users,
		bookings:      bookings,
		notes:         notes,
		records:       records,
		bcryptCost:    bcryptCost,
		ownerPassword: ownerPassword,
	}
}

// Owner returns the main owner.  It never creates one.
func (s *UserService) Owner(ctx context.Context) (model.User, error) {
	owners, err := s.users.Owners(ctx)
	if err != nil {
		return model.User{}, err
	}
	if len(owners) == 0 {
		return model.User{}, apperr.New(apperr.ErrNotFound, "Owner not found")
	}
	return owners[0], nil
}

// BootstrapOwner makes sure exactly one owner exists.  created reports
// whether the account was made by this call.  More than one owner is a
// Conflict the operator has to resolve.
func (s *UserService) BootstrapOwner(ctx context.Context) (model.User, bool, error) {
	owners, err := s.users.Owners(ctx)
	if err != nil {
		return model.User{}, false, err
	}
	switch len(owners) {
	case 0:
	case 1:
		return owners[0], false, nil
	default:
		return model.User{}, false, apperr.Newf(apperr.ErrConflict, "Expected one owner account, found %d", len(owners))
	}

	hash, err := utils.HashPassword(s.ownerPassword, s.bcryptCost)
	if err != nil {
		return model.User{}, false, err
	}
	mobile := OwnerMobile
	u := model.User{
		Username:      OwnerUsername,
		Email:         OwnerEmail,
		Mobile:        &mobile,
		PasswordHash:  hash,
		Role:          model.RoleOwner,
		IsActive:      true,
		EmailVerified: true,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, false, fmt.Errorf("create owner: %w", err)
	}
	logger.Success(fmt.Sprintf("owner account %s created", u.Username))
	return u, true, nil
}

// AdminReset wipes every table and recreates the main owner.  provided
// must equal the configured secret.
func (s *UserService) AdminReset(ctx context.Context, secret, provided string) (model.User, error) {
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) != 1 {
		return model.User{}, apperr.New(apperr.ErrForbidden, "Forbidden")
	}
	if err := s.records.DeleteAll(ctx); err != nil {
		return model.User{}, fmt.Errorf("reset service records: %w", err)
	}
	if err := s.notes.DeleteAll(ctx); err != nil {
		return model.User{}, fmt.Errorf("reset notifications: %w", err)
	}
	if err := s.bookings.DeleteAll(ctx); err != nil {
		return model.User{}, fmt.Errorf("reset bookings: %w", err)
	}
	if err := s.users.DeleteAll(ctx); err != nil {
		return model.User{}, fmt.Errorf("reset users: %w", err)
	}
	logger.Warn("admin reset: all data removed")
	u, _, err := s.BootstrapOwner(ctx)
	return u, err
}

// GetProfile returns the user with the given id.
func (s *UserService) GetProfile(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return model.User{}, apperr.New(apperr.ErrNotFound, "User not found")
	}
	return u, err
}

// ProfileInput carries the editable fields.  Nil fields are left alone.
type ProfileInput struct {
	Username *string
	Email    *string
	Mobile   *string
	Profile  *model.Profile
}

// UpdateProfile applies in to the user after format and uniqueness checks.
func (s *UserService) UpdateProfile(ctx context.Context, id uint64, in ProfileInput) (model.User, error) {
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if err := checkUsername(name); err != nil {
			return model.User{}, err
		}
		if name != u.Username {
			if err := s.ensureUnique(ctx, "username", name, id, "Username already taken"); err != nil {
				return model.User{}, err
			}
			u.Username = name
		}
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if !validEmail(email) {
			return model.User{}, apperr.New(apperr.ErrValidation, "Please enter a valid email")
		}
		if email != u.Email {
			if err := s.ensureUnique(ctx, "email", email, id, "Email already registered"); err != nil {
				return model.User{}, err
			}
			u.Email = email
		}
	}
	if in.Mobile != nil {
		m := strings.TrimSpace(*in.Mobile)
		switch {
		case m == "":
			u.Mobile = nil
		case !validMobile(m):
			return model.User{}, apperr.New(apperr.ErrValidation, "Please enter a valid 10-digit mobile number")
		default:
			if u.Mobile == nil || *u.Mobile != m {
				if err := s.ensureUnique(ctx, "mobile", m, id, "Mobile number already taken"); err != nil {
					return model.User{}, err
				}
			}
			u.Mobile = &m
		}
	}
	if in.Profile != nil {
		u.Profile = model.Profile{
			Address: strings.TrimSpace(in.Profile.Address),
			City:    strings.TrimSpace(in.Profile.City),
			State:   strings.TrimSpace(in.Profile.State),
			Pincode: strings.TrimSpace(in.Profile.Pincode),
		}
	}
	if err := s.users.Update(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *UserService) ensureUnique(ctx context.Context, field, value string, except uint64, msg string) error {
	taken, err := s.users.Taken(ctx, field, value, except)
	if err != nil {
		return err
	}
	if taken {
		return apperr.New(apperr.ErrConflict, msg)
	}
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, id uint64, current, next string) error {
	if current == "" || next == "" {
		return apperr.New(apperr.ErrValidation, "Current password and new password are required")
	}
	if err := checkPassword(next); err != nil {
		return err
	}
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return apperr.New(apperr.ErrValidation, "Current password is incorrect")
	}
	hash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.users.Update(ctx, &u)
}

// List returns one page of users, newest first.
func (s *UserService) List(ctx context.Context, page, limit int, search string) ([]model.User, Page, error) {
	page, limit, offset := normalizePage(page, limit, 10)
	users, total, err := s.users.List(ctx, model.UserFilter{Search: strings.TrimSpace(search), Offset: offset, Limit: limit})
	if err != nil {
		return nil, Page{}, err
	}
	return users, newPage(page, limit, total), nil
}

// ToggleStatus flips the active flag of user id.  Owners cannot
// deactivate themselves.
func (s *UserService) ToggleStatus(ctx context.Context, actor Actor, id uint64) (model.User, error) {
	if actor.ID == id {
		return model.User{}, apperr.New(apperr.ErrInvalidState, "Cannot deactivate your own account")
	}
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	u.IsActive = !u.IsActive
	if err := s.users.Update(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}
