package shopapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/souqlab/souq/internal/account"
	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/internal/webserver"
)

func registerProfileRoutes() {
	webserver.PubGET("/profiles/:id", getPublicProfile)
	webserver.ApiGET("/me/profile", getMyProfile)
	webserver.ApiPUT("/me/profile", updateMyProfile)
}

func getPublicProfile(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid profile ID", nil)
	}
	p, err := appCtx(c).Accounts().GetProfile(c.Request().Context(), id)
	if err != nil {
		return accountError(c, err)
	}
	if p == nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Profile not found", nil)
	}
	// contact details stay private
	return ok(c, domain.SellerInfo{ID: p.ID, FullName: p.FullName, AvatarUrl: p.AvatarUrl})
}

func getMyProfile(c echo.Context) error {
	uid := webserver.CurrentUserID(c)
	p, err := appCtx(c).Accounts().GetProfile(c.Request().Context(), uid)
	if err != nil {
		return accountError(c, err)
	}
	if p == nil {
		p = &domain.UserProfile{ID: uid}
	}
	return ok(c, p)
}

func updateMyProfile(c echo.Context) error {
	var req account.ProfileInput
	if err := bindValid(c, &req); err != nil {
		return err
	}
	p, err := appCtx(c).Accounts().UpsertProfile(c.Request().Context(), webserver.CurrentUserID(c), req)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid profile", verrs.Error())
	} else if err != nil {
		return accountError(c, err)
	}
	return ok(c, p)
}
