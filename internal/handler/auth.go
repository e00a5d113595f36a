package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

// authTimeout bounds the database work of one auth request.
const authTimeout = 5 * time.Second

// AuthHandler serves guest signup and login, staff login, token refresh
// and the account pages.
type AuthHandler struct {
	Cfg      config.Config
	Users    repository.UserStore
	Tokens   repository.TokenStore
	Bookings *booking.Service
	Log      *logrus.Logger
}

func NewAuthHandler(cfg config.Config, users repository.UserStore, tokens repository.TokenStore, bookings *booking.Service, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Tokens: tokens, Bookings: bookings, Log: log}
}

type signupReq struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,phmobile"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

type profileReq struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,phmobile"`
}

type passwordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=64"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type userPart struct {
	ID        uint64     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Role      model.Role `json:"role"`
}

type authResp struct {
	Success          bool      `json:"success"`
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	User             userPart  `json:"user"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Phone: u.Phone, Role: u.Role}
}

// Signup registers a guest account and signs it in.  The role is always
// Guest; staff accounts are provisioned out of band.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName, req.LastName = strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if err := check(req); err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		verr := apperr.Validation("password is too long")
		verr.AddField("password", "must be at most 72 bytes")
		return verr
	}
	if err != nil {
		return apperr.Internal("hash password", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u := model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        normalizePhone(req.Phone),
		PasswordHash: hash,
		Role:         model.RoleGuest,
	}
	if err := h.Users.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apperr.Conflict("email already registered")
		}
		return apperr.Internal("create user", err)
	}
	h.Log.WithField("user_id", u.ID).Info("guest registered")
	return h.issue(ctx, c, http.StatusCreated, u)
}

// Login signs in any account with email and password.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()
	u, err := h.authenticate(ctx, c)
	if err != nil {
		return err
	}
	return h.issue(ctx, c, http.StatusOK, u)
}

// StaffLogin is the dashboard sign-in.  Only staff roles are admitted.
func (h *AuthHandler) StaffLogin(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()
	u, err := h.authenticate(ctx, c)
	if err != nil {
		return err
	}
	if !u.Role.IsStaff() {
		h.Log.WithField("user_id", u.ID).Warn("non-staff account attempted dashboard login")
		return echo.NewHTTPError(http.StatusForbidden, "Access denied. Staff accounts only.")
	}
	return h.issue(ctx, c, http.StatusOK, u)
}

// authenticate checks credentials.  Unknown emails and wrong passwords
// produce the same error.
func (h *AuthHandler) authenticate(ctx context.Context, c echo.Context) (model.User, error) {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return model.User{}, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := check(req); err != nil {
		return model.User{}, err
	}
	u, err := h.Users.UserByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.BurnPasswordCheck(req.Password)
		return model.User{}, apperr.Security("invalid credentials")
	}
	if err != nil {
		return model.User{}, apperr.Internal("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return model.User{}, apperr.Security("invalid credentials")
	}
	return u, nil
}

// Refresh exchanges a refresh token for a new pair, revoking the old one.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		verr := apperr.Validation("refreshToken is required")
		verr.AddField("refreshToken", "is required")
		return verr
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	hash := utils.HashRefreshRaw(raw)
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return apperr.Security("invalid refresh token")
	}
	if err != nil {
		return apperr.Internal("validate refresh token", err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return apperr.Internal("revoke refresh token", err)
	}
	u, err := h.Users.UserByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Security("invalid refresh token")
	}
	if err != nil {
		return apperr.Internal("load user", err)
	}
	return h.issue(ctx, c, http.StatusOK, u)
}

// Logout revokes the refresh token in the body or, when none is given and
// the request is authenticated, every refresh token of the user.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrTokenInvalid) {
				return apperr.Security("invalid refresh token")
			}
			return apperr.Internal("validate refresh token", err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return apperr.Internal("revoke refresh token", err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	uid, _ := middleware.Identity(c)
	if uid == 0 {
		verr := apperr.Validation("provide a bearer token or refreshToken")
		verr.AddField("refreshToken", "is required without a bearer token")
		return verr
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return apperr.Internal("revoke refresh tokens", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in account.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _ := middleware.Identity(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()
	u, err := h.Users.UserByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Security("account no longer exists")
	}
	if err != nil {
		return apperr.Internal("load user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": toUserPart(u)})
}

// UpdateProfile edits the signed-in account's name, email and phone.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName, req.LastName = strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if err := check(req); err != nil {
		return err
	}
	uid, _ := middleware.Identity(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.UserByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Security("account no longer exists")
	}
	if err != nil {
		return apperr.Internal("load user", err)
	}
	u.FirstName, u.LastName, u.Email = req.FirstName, req.LastName, req.Email
	u.Phone = normalizePhone(req.Phone)
	if err := h.Users.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apperr.Conflict("email already registered")
		}
		return apperr.Internal("update profile", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Profile updated successfully",
		"user":    toUserPart(u),
	})
}

// ChangePassword replaces the password after checking the current one and
// signs the account out of every other session.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req passwordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := check(req); err != nil {
		return err
	}
	uid, _ := middleware.Identity(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.UserByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Security("account no longer exists")
	}
	if err != nil {
		return apperr.Internal("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return apperr.Security("current password is incorrect")
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := h.Users.UpdatePassword(ctx, uid, hash); err != nil {
		return apperr.Internal("update password", err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return apperr.Internal("revoke refresh tokens", err)
	}
	h.Log.WithField("user_id", uid).Info("password changed")
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Password changed successfully"})
}

// Stats is the account summary shown on the profile page.
func (h *AuthHandler) Stats(c echo.Context) error {
	uid, role := middleware.Identity(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.UserByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Security("account no longer exists")
	}
	if err != nil {
		return apperr.Internal("load user", err)
	}
	n, err := h.Bookings.BookingCount(ctx, booking.Caller{UserID: uid, Role: role})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"stats": echo.Map{
			"memberSince":   u.CreatedAt.In(h.Bookings.Location()).Year(),
			"totalBookings": n,
		},
	})
}

func (h *AuthHandler) issue(ctx context.Context, c echo.Context, status int, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return apperr.Internal("issue access token", err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return apperr.Internal("issue refresh token", err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return apperr.Internal("store refresh token", err)
	}
	return c.JSON(status, authResp{
		Success:          true,
		Token:            access.Token,
		ExpiresAt:        access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
		User:             toUserPart(u),
	})
}
