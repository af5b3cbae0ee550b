package shopapi

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/souqlab/souq/internal/orders"
	"github.com/souqlab/souq/internal/webserver"
)

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
	orders.StatusPatch
}

func registerOrderRoutes() {
	webserver.ApiGET("/me/payments", listMyPayments)
	webserver.ApiGET("/me/orders", listMyOrders)
	webserver.ApiGET("/me/orders/export", exportMyOrders)
	webserver.ApiPUT("/orders/:id/status", updateOrderStatus)
	webserver.ApiGET("/me/sales/stats", mySalesStats)
}

func ordersError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
	case errors.Is(err, orders.ErrNotSeller):
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Only the seller can update this order", nil)
	case errors.Is(err, orders.ErrInvalidStatus), errors.Is(err, orders.ErrInvalidFilter):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	}
	zap.L().Error("orders request failed", zap.Error(err))
	return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", nil)
}

func listMyPayments(c echo.Context) error {
	rows, err := appCtx(c).Orders().UserPayments(c.Request().Context(), webserver.CurrentUserID(c))
	if err != nil {
		return ordersError(c, err)
	}
	return ok(c, rows)
}

func listMyOrders(c echo.Context) error {
	rows, err := appCtx(c).Orders().UserOrders(c.Request().Context(), webserver.CurrentUserID(c), orders.Filter{
		Role:   strings.TrimSpace(c.QueryParam("role")),
		Status: strings.TrimSpace(c.QueryParam("status")),
		From:   strings.TrimSpace(c.QueryParam("from")),
		To:     strings.TrimSpace(c.QueryParam("to")),
	})
	if err != nil {
		return ordersError(c, err)
	}
	return ok(c, rows)
}

func exportMyOrders(c echo.Context) error {
	var buf bytes.Buffer
	if err := appCtx(c).Orders().ExportCSV(c.Request().Context(), webserver.CurrentUserID(c), &buf); err != nil {
		return ordersError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="orders.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func updateOrderStatus(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var req orderStatusRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	order, err := appCtx(c).Orders().UpdateStatus(c.Request().Context(), id, webserver.CurrentUserID(c), req.Status, req.StatusPatch)
	if err != nil {
		return ordersError(c, err)
	}
	audit(c, "update_order_status", req.Status)
	return ok(c, order)
}

func mySalesStats(c echo.Context) error {
	out, err := appCtx(c).Orders().SellerStats(c.Request().Context(), webserver.CurrentUserID(c))
	if err != nil {
		return ordersError(c, err)
	}
	return ok(c, out)
}
