package shopapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/souqlab/souq/internal/webserver"
)

func registerWishlistRoutes() {
	webserver.ApiGET("/me/wishlist", listWishlist)
	webserver.ApiPOST("/me/wishlist/:product_id", addWishlist)
	webserver.ApiDELETE("/me/wishlist/:product_id", removeWishlist)
}

func listWishlist(c echo.Context) error {
	rows, err := appCtx(c).Catalog().Wishlist(c.Request().Context(), webserver.CurrentUserID(c))
	if err != nil {
		return catalogError(c, err)
	}
	return ok(c, rows)
}

func addWishlist(c echo.Context) error {
	id, valid := parseID(c, "product_id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	exists, err := appCtx(c).Catalog().AddToWishlist(c.Request().Context(), webserver.CurrentUserID(c), id)
	if err != nil {
		return catalogError(c, err)
	}
	return ok(c, map[string]bool{"success": true, "already_exists": exists})
}

func removeWishlist(c echo.Context) error {
	id, valid := parseID(c, "product_id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	if err := appCtx(c).Catalog().RemoveFromWishlist(c.Request().Context(), webserver.CurrentUserID(c), id); err != nil {
		return catalogError(c, err)
	}
	return ok(c, map[string]bool{"success": true})
}
