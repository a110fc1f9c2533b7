package handler

// This file defines the registration and login endpoints.  OTP registration
// is two steps: send-otp parks the account and mails a code, verify-otp
// creates it.  Signup skips the code.

import (
	"context" // request scoped timeouts for store calls
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fixmybike-booking/internal/middleware"
	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/service"
)

// AuthHandler serves registration, login and password recovery.
type AuthHandler struct {
	Auth  *service.AuthService
	Users *service.UserService
}

// NewAuthHandler wires the auth endpoints.
func NewAuthHandler(auth *service.AuthService, users *service.UserService) *AuthHandler {
	return &AuthHandler{Auth: auth, Users: users}
}

// ----- DTOs -----

type sendOTPReq struct {
	Email    string `json:"email" validate:"required" msg:"Email and username are required"`
	Username string `json:"username" validate:"required" msg:"Email and username are required"`
	Phone    string `json:"phone"`
}

type verifyOTPReq struct {
	TempUserID string `json:"tempUserId"`
	OTP        string `json:"otp"`
	Password   string `json:"password"`
}

type resendOTPReq struct {
	TempUserID string `json:"tempUserId"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email" msg:"Please enter a valid email"`
}

type resetReq struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type signupReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Mobile   string `json:"mobile"`
}

type loginReq struct {
	EmailOrUser string `json:"emailOrUser"`
	Email       string `json:"email"` // accepted for older clients
	Password    string `json:"password"`
}

type availabilityReq struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type profileReq struct {
	Username *string        `json:"username"`
	Email    *string        `json:"email"`
	Mobile   *string        `json:"mobile"`
	Profile  *model.Profile `json:"profile"`
}

func (r profileReq) input() service.ProfileInput {
	return service.ProfileInput{Username: r.Username, Email: r.Email, Mobile: r.Mobile, Profile: r.Profile}
}

func sentBody(s service.OTPSent) echo.Map {
	m := echo.Map{"tempUserId": s.TempUserID}
	if s.PreviewURL != "" {
		m["previewUrl"] = s.PreviewURL
	}
	return m
}

func sessionBody(s service.Session) echo.Map {
	return echo.Map{"token": s.Token, "expiresAt": s.ExpiresAt, "user": s.User}
}

// SendOTP starts a registration and mails the code.
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req sendOTPReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	sent, err := h.Auth.SendOTP(ctx, service.SendOTPInput{Email: req.Email, Username: req.Username, Phone: req.Phone})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "OTP sent to your email", sentBody(sent))
}

// VerifyOTP completes a registration and logs the new customer in.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.VerifyOTP(ctx, service.VerifyOTPInput{TempUserID: req.TempUserID, OTP: req.OTP, Password: req.Password})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "Registration successful", sessionBody(sess))
}

// ResendOTP issues a fresh code for a pending registration.
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req resendOTPReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	sent, err := h.Auth.ResendOTP(ctx, req.TempUserID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "New OTP sent to your email", sentBody(sent))
}

// ForgotPassword mails a password reset code.  The preview URL is only
// returned by the log mailer.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	sent, err := h.Auth.ForgotPassword(ctx, req.Email)
	if err != nil {
		return err
	}
	body := echo.Map{}
	if sent.PreviewURL != "" {
		body["previewUrl"] = sent.PreviewURL
	}
	return ok(c, http.StatusOK, "Password reset OTP sent to your email", body)
}

// ResetPassword sets a new password once the reset code checks out.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Email, req.OTP, req.NewPassword); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Password reset successful", nil)
}

// Signup is the direct registration without email verification.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Signup(ctx, service.SignupInput{Username: req.Username, Email: req.Email, Password: req.Password, Mobile: req.Mobile})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "User created successfully", sessionBody(sess))
}

// Login accepts an email or username.  The older `email` field is read
// when `emailOrUser` is empty.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	login := req.EmailOrUser
	if login == "" {
		login = req.Email
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Login(ctx, login, req.Password)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Login successful", sessionBody(sess))
}

// CheckAvailability reports whether a field value is still free.
func (h *AuthHandler) CheckAvailability(c echo.Context) error {
	var req availabilityReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	free, err := h.Auth.CheckAvailability(ctx, req.Field, req.Value)
	if err != nil {
		return err
	}
	msg := req.Field + " is available"
	if !free {
		msg = req.Field + " is already taken"
	}
	return ok(c, http.StatusOK, msg, echo.Map{"available": free})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetProfile(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{"user": u})
}

// UpdateProfile edits the authenticated user's own profile.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, middleware.UserID(c), req.input())
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Profile updated successfully", echo.Map{"user": u})
}
