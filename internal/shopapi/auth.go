package shopapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/souqlab/souq/internal/account"
	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/internal/webserver"
)

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"max=200"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type sessionResponse struct {
	Token     string              `json:"token"`
	TokenType string              `json:"token_type"`
	ExpiresIn int64               `json:"expires_in"`
	User      *domain.AppUser     `json:"user"`
	Profile   *domain.UserProfile `json:"profile,omitempty"`
}

func registerAuthRoutes() {
	webserver.PubPOST("/auth/signup", signUp)
	webserver.PubPOST("/auth/signin", signIn)
	webserver.ApiPOST("/auth/signout", signOut)
	webserver.ApiGET("/auth/me", currentUser)
	webserver.ApiPUT("/auth/password", changePassword)
}

func accountError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, account.ErrInvalidEmail),
		errors.Is(err, account.ErrPasswordTooShort),
		errors.Is(err, account.ErrPasswordTooLong),
		errors.Is(err, account.ErrPasswordMismatch):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", errors.Cause(err).Error(), nil)
	case errors.Is(err, account.ErrEmailTaken):
		return fail(c, http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
	case errors.Is(err, account.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	case errors.Is(err, account.ErrUserDisabled):
		return fail(c, http.StatusForbidden, "USER_DISABLED", "Account disabled", nil)
	case errors.Is(err, account.ErrUserNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
	}
	zap.L().Error("account request failed", zap.Error(err))
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}

func newSession(c echo.Context, user *domain.AppUser) error {
	cfg := appCtx(c).Config().Web
	ttl := time.Duration(cfg.TokenTTL) * time.Hour
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	token, err := webserver.IssueToken(cfg.Secret, user.ID, user.Email, ttl)
	if err != nil {
		zap.L().Error("issue token", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
	profile, err := appCtx(c).Accounts().GetProfile(c.Request().Context(), user.ID)
	if err != nil {
		zap.L().Warn("load profile", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return ok(c, sessionResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(ttl.Seconds()),
		User:      user,
		Profile:   profile,
	})
}

func signUp(c echo.Context) error {
	var req signUpRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := appCtx(c).Accounts().SignUp(c.Request().Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		return accountError(c, err)
	}
	auditAs(c, user.Email, "signup", "")
	return newSession(c, user)
}

func signIn(c echo.Context) error {
	var req signInRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := appCtx(c).Accounts().SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return accountError(c, err)
	}
	return newSession(c, user)
}

// signOut only records the event, tokens expire on their own
func signOut(c echo.Context) error {
	audit(c, "signout", "")
	return ok(c, map[string]bool{"success": true})
}

func currentUser(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := appCtx(c).Accounts().GetUser(ctx, webserver.CurrentUserID(c))
	if err != nil {
		return accountError(c, err)
	}
	profile, err := appCtx(c).Accounts().GetProfile(ctx, user.ID)
	if err != nil {
		return accountError(c, err)
	}
	return ok(c, map[string]interface{}{"user": user, "profile": profile})
}

func changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	err := appCtx(c).Accounts().ChangePassword(c.Request().Context(), webserver.CurrentUserID(c), req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return accountError(c, err)
	}
	audit(c, "change_password", "")
	return ok(c, map[string]bool{"success": true})
}
