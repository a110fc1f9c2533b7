package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/mail"
	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/otp"
	"github.com/iliyamo/fixmybike-booking/internal/utils"
)

// AuthConfig carries the token and hashing settings.
type AuthConfig struct {
	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int
}

// AuthService registers users through email OTP, logs them in and resets
// passwords.
type AuthService struct {
	users   UserStore
	pending otp.PendingStore
	mailer  mail.Mailer
	sms     mail.SMSSender
	cfg     AuthConfig
	now     Clock
}

// NewAuthService wires the service.  sms may be nil.
func NewAuthService(users UserStore, pending otp.PendingStore, mailer mail.Mailer, sms mail.SMSSender, cfg AuthConfig, now Clock) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{users: users, pending: pending, mailer: mailer, sms: sms, cfg: cfg, now: now}
}

// Session is a signed token plus the user it was issued for.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

// OTPSent is returned when a code was mailed.  The code itself is never
// part of it.
type OTPSent struct {
	TempUserID string `json:"tempUserId"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

func (s *AuthService) issue(u model.User) (Session, error) {
	tok, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, u.Username, s.cfg.JWTTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok.Token, ExpiresAt: tok.Exp, User: u}, nil
}

// ensureFree fails with Conflict when the username or email is in use.
func (s *AuthService) ensureFree(ctx context.Context, username, email string) error {
	taken, err := s.users.Taken(ctx, "email", email, 0)
	if err != nil {
		return err
	}
	if taken {
		return apperr.New(apperr.ErrConflict, "Email already registered")
	}
	taken, err = s.users.Taken(ctx, "username", username, 0)
	if err != nil {
		return err
	}
	if taken {
		return apperr.New(apperr.ErrConflict, "Username already taken")
	}
	return nil
}

// SendOTPInput starts a registration.
type SendOTPInput struct {
	Email    string
	Username string
	Phone    string
}

// SendOTP stores a pending registration and mails its code.  A phone
// number, when given, also receives the code by SMS.
func (s *AuthService) SendOTP(ctx context.Context, in SendOTPInput) (OTPSent, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" {
		return OTPSent{}, apperr.New(apperr.ErrValidation, "Email and username are required")
	}
	if !validEmail(email) {
		return OTPSent{}, apperr.New(apperr.ErrValidation, "Please enter a valid email")
	}
	if err := checkUsername(username); err != nil {
		return OTPSent{}, err
	}
	if in.Phone != "" && !validMobile(in.Phone) {
		return OTPSent{}, apperr.New(apperr.ErrValidation, "Please enter a valid 10-digit mobile number")
	}
	if err := s.ensureFree(ctx, username, email); err != nil {
		return OTPSent{}, err
	}

	code, err := otp.Generate()
	if err != nil {
		return OTPSent{}, err
	}
	handle := otp.Handle(email, username)
	entry := otp.Entry{Code: code, ExpiresAt: otp.ExpiryFrom(s.now()), Email: email, Username: username, Phone: in.Phone}
	if err := s.pending.Put(ctx, handle, entry); err != nil {
		return OTPSent{}, err
	}
	sent, err := s.deliver(ctx, entry, false)
	if err != nil {
		_ = s.pending.Delete(ctx, handle)
		return OTPSent{}, err
	}
	sent.TempUserID = handle
	return sent, nil
}

// deliver mails the code of e and texts it when e has a phone number.
// Only the email is required to succeed.
func (s *AuthService) deliver(ctx context.Context, e otp.Entry, reset bool) (OTPSent, error) {
	subject := mail.SubjectVerification
	if reset {
		subject = mail.SubjectPasswordReset
	}
	html, err := mail.OTPEmail(e.Username, e.Code, otp.TTL, reset)
	if err != nil {
		return OTPSent{}, err
	}
	d, err := s.mailer.Send(ctx, e.Email, subject, html)
	if err != nil {
		logger.Error("otp email to "+e.Email+" failed", err)
		return OTPSent{}, apperr.New(apperr.ErrUpstream, "Failed to send verification email. Please try again.")
	}
	if e.Phone != "" && s.sms != nil {
		if err := s.sms.SendSMS(ctx, e.Phone, mail.OTPText(e.Code, otp.TTL)); err != nil {
			logger.Error("otp sms failed", err)
		}
	}
	return OTPSent{PreviewURL: d.PreviewURL}, nil
}

// VerifyOTPInput completes a registration.
type VerifyOTPInput struct {
	TempUserID string
	OTP        string
	Password   string
}

// VerifyOTP checks the code, consumes the pending entry and creates the
// customer account.
func (s *AuthService) VerifyOTP(ctx context.Context, in VerifyOTPInput) (Session, error) {
	if in.TempUserID == "" || in.OTP == "" || in.Password == "" {
		return Session{}, apperr.New(apperr.ErrValidation, "All fields are required")
	}
	if err := checkPassword(in.Password); err != nil {
		return Session{}, err
	}
	entry, err := s.pending.Consume(ctx, in.TempUserID, strings.TrimSpace(in.OTP), s.now())
	if err != nil {
		return Session{}, err
	}
	// The email or username may have been taken while the code was pending.
	if err := s.ensureFree(ctx, entry.Username, entry.Email); err != nil {
		return Session{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return Session{}, err
	}
	u := model.User{
		Username:      entry.Username,
		Email:         entry.Email,
		PasswordHash:  hash,
		Role:          model.RoleCustomer,
		IsActive:      true,
		EmailVerified: true,
	}
	if entry.Phone != "" {
		p := entry.Phone
		u.Mobile = &p
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return Session{}, err
	}
	logger.Infof("user %d registered via otp", u.ID)
	return s.issue(u)
}

// ResendOTP issues a new code for a pending registration.
func (s *AuthService) ResendOTP(ctx context.Context, tempUserID string) (OTPSent, error) {
	if tempUserID == "" {
		return OTPSent{}, apperr.New(apperr.ErrValidation, "User ID is required")
	}
	entry, err := otp.Resend(ctx, s.pending, tempUserID, s.now())
	if err != nil {
		return OTPSent{}, err
	}
	sent, err := s.deliver(ctx, entry, false)
	if err != nil {
		return OTPSent{}, err
	}
	sent.TempUserID = tempUserID
	return sent, nil
}

// ForgotPassword stores a reset code on the user and mails it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (OTPSent, error) {
	if strings.TrimSpace(email) == "" {
		return OTPSent{}, apperr.New(apperr.ErrValidation, "Email is required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return OTPSent{}, apperr.New(apperr.ErrNotFound, "No account found with this email address")
	}
	if err != nil {
		return OTPSent{}, err
	}
	code, err := otp.Generate()
	if err != nil {
		return OTPSent{}, err
	}
	exp := otp.ExpiryFrom(s.now())
	u.EmailOTP = model.EmailOTP{Code: &code, ExpiresAt: &exp}
	if err := s.users.Update(ctx, &u); err != nil {
		return OTPSent{}, err
	}
	return s.deliver(ctx, otp.Entry{Code: code, ExpiresAt: exp, Email: u.Email, Username: u.Username}, true)
}

// ResetPassword replaces the password when code matches the stored reset
// code.  The code is cleared on success.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if email == "" || code == "" || newPassword == "" {
		return apperr.New(apperr.ErrValidation, "All fields are required")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	var stored string
	var exp time.Time
	if u.EmailOTP.Code != nil {
		stored = *u.EmailOTP.Code
	}
	if u.EmailOTP.ExpiresAt != nil {
		exp = *u.EmailOTP.ExpiresAt
	}
	if !otp.Verify(stored, exp, strings.TrimSpace(code), s.now()) {
		return apperr.New(apperr.ErrValidation, "Invalid or expired verification code")
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.EmailOTP = model.EmailOTP{}
	return s.users.Update(ctx, &u)
}

// SignupInput is the direct, unverified registration.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Mobile   string
}

// Signup creates a customer without email verification.  The role is
// always customer.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if username == "" || email == "" || in.Password == "" {
		return Session{}, apperr.New(apperr.ErrValidation, "Username, email, and password are required")
	}
	if !validEmail(email) {
		return Session{}, apperr.New(apperr.ErrValidation, "Please enter a valid email")
	}
	if err := checkUsername(username); err != nil {
		return Session{}, err
	}
	if in.Mobile != "" && !validMobile(in.Mobile) {
		return Session{}, apperr.New(apperr.ErrValidation, "Please enter a valid 10-digit mobile number")
	}
	if err := checkPassword(in.Password); err != nil {
		return Session{}, err
	}
	if err := s.ensureFree(ctx, username, email); err != nil {
		return Session{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return Session{}, err
	}
	u := model.User{Username: username, Email: email, PasswordHash: hash, Role: model.RoleCustomer, IsActive: true}
	if in.Mobile != "" {
		m := in.Mobile
		u.Mobile = &m
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return Session{}, err
	}
	return s.issue(u)
}

// Login authenticates by email or username.
func (s *AuthService) Login(ctx context.Context, emailOrUser, password string) (Session, error) {
	if strings.TrimSpace(emailOrUser) == "" || password == "" {
		return Session{}, apperr.New(apperr.ErrValidation, "Email/username and password are required")
	}
	u, err := s.users.GetByLogin(ctx, emailOrUser)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, apperr.New(apperr.ErrUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, apperr.New(apperr.ErrUnauthorized, "Invalid credentials")
	}
	if !u.IsActive {
		return Session{}, apperr.New(apperr.ErrForbidden, "Account is deactivated")
	}
	return s.issue(u)
}

// CheckAvailability reports whether a username or email is free.
func (s *AuthService) CheckAvailability(ctx context.Context, field, value string) (bool, error) {
	if field == "" || strings.TrimSpace(value) == "" {
		return false, apperr.New(apperr.ErrValidation, "Field and value are required")
	}
	if field != "username" && field != "email" {
		return false, apperr.New(apperr.ErrValidation, "Field must be either username or email")
	}
	taken, err := s.users.Taken(ctx, field, strings.TrimSpace(value), 0)
	return !taken, err
}
