package model

import "time"

// Role values stored in users.role.
const (
	RoleCustomer = "customer"
	RoleOwner    = "owner"
)

// Profile holds the optional postal details of a user.  It is stored
// inline on the users table.
type Profile struct {
	Address string `json:"address"` // users.address
	City    string `json:"city"`    // users.city
	State   string `json:"state"`   // users.state
	Pincode string `json:"pincode"` // users.pincode
}

// EmailOTP is the password-reset code kept on the user record.  Both
// fields are nil when no reset is in flight.
type EmailOTP struct {
	Code      *string    `json:"-"` // users.email_otp_code
	ExpiresAt *time.Time `json:"-"` // users.email_otp_expires_at
}

// User represents a row of the `users` table.
//
// Fields:
//  ID             – primary key identifier of the user.
//  Username       – unique handle, 3 to 30 characters.
//  Email          – unique, lower-cased email address.
//  Mobile         – optional ten digit Indian mobile number.
//  PasswordHash   – bcrypt hash, never serialised.
//  Role           – customer or owner.
//  IsActive       – deactivated accounts cannot log in.
//  EmailVerified  – set when the account was created through OTP.
//  MobileVerified – reserved for SMS verification.
type User struct {
	ID             uint64    `json:"id"`             // users.id
	Username       string    `json:"username"`       // users.username
	Email          string    `json:"email"`          // users.email
	Mobile         *string   `json:"mobile"`         // users.mobile (nullable)
	PasswordHash   string    `json:"-"`              // users.password_hash
	Role           string    `json:"role"`           // users.role
	Profile        Profile   `json:"profile"`        // users.address/city/state/pincode
	IsActive       bool      `json:"isActive"`       // users.is_active
	EmailVerified  bool      `json:"emailVerified"`  // users.email_verified
	MobileVerified bool      `json:"mobileVerified"` // users.mobile_verified
	EmailOTP       EmailOTP  `json:"-"`              // users.email_otp_*
	CreatedAt      time.Time `json:"createdAt"`      // users.created_at
	UpdatedAt      time.Time `json:"updatedAt"`      // users.updated_at
}

// IsOwner reports whether the user holds the owner role.
func (u User) IsOwner() bool { return u.Role == RoleOwner }

// UserFilter narrows a user listing.  Search matches username, email or
// mobile case-insensitively.
type UserFilter struct {
	Search string
	Offset int
	Limit  int
}
