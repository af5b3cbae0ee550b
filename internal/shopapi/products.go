package shopapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/souqlab/souq/internal/catalog"
	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/internal/webserver"
)

func registerProductRoutes() {
	webserver.PubGET("/products", listProducts)
	webserver.PubGET("/products/:id", getProduct)
	webserver.PubGET("/sellers/:id/products", listSellerProducts)
	webserver.PubGET("/categories", listCategories)
	webserver.ApiGET("/me/products", listMyProducts)
	webserver.ApiPOST("/products", createProduct)
	webserver.ApiPUT("/products/:id", updateProduct)
	webserver.ApiDELETE("/products/:id", deleteProduct)
}

func catalogError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	case errors.Is(err, catalog.ErrNotOwner):
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Only the seller can change this product", nil)
	case errors.Is(err, catalog.ErrInvalidProduct):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	}
	zap.L().Error("catalog request failed", zap.Error(err))
	return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", nil)
}

func parseFloatParam(c echo.Context, name string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.QueryParam(name)), 64)
	if err != nil {
		return nil
	}
	return &v
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	f := catalog.Filter{
		Category: strings.TrimSpace(c.QueryParam("category")),
		Search:   strings.TrimSpace(c.QueryParam("q")),
		MinPrice: parseFloatParam(c, "min_price"),
		MaxPrice: parseFloatParam(c, "max_price"),
		Page:     page,
		PageSize: pageSize,
		Sort:     strings.TrimSpace(c.QueryParam("sort")),
		Order:    strings.TrimSpace(c.QueryParam("order")),
	}
	if cond := strings.TrimSpace(c.QueryParam("condition")); cond != "" {
		for _, v := range strings.Split(cond, ",") {
			if v = strings.TrimSpace(v); v != "" {
				f.Conditions = append(f.Conditions, v)
			}
		}
	}
	rows, total, err := appCtx(c).Catalog().List(c.Request().Context(), f, webserver.CurrentUserID(c))
	if err != nil {
		return catalogError(c, err)
	}
	return paged(c, rows, total, page, pageSize)
}

func getProduct(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	p, err := appCtx(c).Catalog().Get(c.Request().Context(), id, webserver.CurrentUserID(c))
	if err != nil {
		return catalogError(c, err)
	}
	return ok(c, p)
}

func listSellerProducts(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid seller ID", nil)
	}
	rows, err := appCtx(c).Catalog().ListBySeller(c.Request().Context(), id)
	if err != nil {
		return catalogError(c, err)
	}
	// other people only see what is still for sale
	if id != webserver.CurrentUserID(c) {
		active := rows[:0]
		for _, p := range rows {
			if p.Status == domain.ProductActive {
				active = append(active, p)
			}
		}
		rows = active
	}
	return ok(c, rows)
}

func listCategories(c echo.Context) error {
	return ok(c, map[string][]string{
		"categories": domain.ProductCategories,
		"conditions": domain.ProductConditions,
	})
}

func listMyProducts(c echo.Context) error {
	rows, err := appCtx(c).Catalog().ListBySeller(c.Request().Context(), webserver.CurrentUserID(c))
	if err != nil {
		return catalogError(c, err)
	}
	return ok(c, rows)
}

func createProduct(c echo.Context) error {
	var req catalog.ProductInput
	if err := bindValid(c, &req); err != nil {
		return err
	}
	p, err := appCtx(c).Catalog().Create(c.Request().Context(), webserver.CurrentUserID(c), req)
	if err != nil {
		return catalogError(c, err)
	}
	audit(c, "create_product", strconv.FormatInt(p.ID, 10))
	return created(c, p)
}

func updateProduct(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var req catalog.ProductPatch
	if err := bindValid(c, &req); err != nil {
		return err
	}
	p, err := appCtx(c).Catalog().Update(c.Request().Context(), id, webserver.CurrentUserID(c), req)
	if err != nil {
		return catalogError(c, err)
	}
	return ok(c, p)
}

func deleteProduct(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	if err := appCtx(c).Catalog().Delete(c.Request().Context(), id, webserver.CurrentUserID(c)); err != nil {
		return catalogError(c, err)
	}
	audit(c, "delete_product", strconv.FormatInt(id, 10))
	return ok(c, map[string]bool{"success": true})
}
