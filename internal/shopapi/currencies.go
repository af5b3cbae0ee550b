package shopapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/souqlab/souq/internal/currency"
	"github.com/souqlab/souq/internal/webserver"
)

type conversion struct {
	Amount          float64 `json:"amount"`
	From            string  `json:"from"`
	To              string  `json:"to"`
	Result          float64 `json:"result"`
	FormattedResult string  `json:"formatted_result"`
}

func registerCurrencyRoutes() {
	webserver.PubGET("/currencies", listCurrencies)
	webserver.PubGET("/currencies/convert", convertCurrency)
	webserver.PubGET("/payment-methods", listPaymentMethods)
	webserver.PubGET("/health", health)
}

func listCurrencies(c echo.Context) error {
	return ok(c, currency.Supported())
}

func listPaymentMethods(c echo.Context) error {
	return ok(c, currency.PaymentMethods())
}

func convertCurrency(c echo.Context) error {
	amount, err := strconv.ParseFloat(c.QueryParam("amount"), 64)
	if err != nil || amount < 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "A non-negative amount is required", nil)
	}
	from := currency.Normalize(c.QueryParam("from"))
	to := currency.Normalize(c.QueryParam("to"))
	if !currency.IsSupported(from) || !currency.IsSupported(to) {
		return fail(c, http.StatusBadRequest, "UNSUPPORTED_CURRENCY", "Unsupported currency", currency.Supported())
	}
	result, err := appCtx(c).Converter().Convert(amount, from, to)
	if errors.Is(err, currency.ErrRateUnavailable) {
		return fail(c, http.StatusBadRequest, "RATE_UNAVAILABLE", err.Error(), nil)
	} else if err != nil {
		return err
	}
	return ok(c, conversion{
		Amount:          amount,
		From:            from,
		To:              to,
		Result:          result,
		FormattedResult: currency.Format(result, to),
	})
}

func health(c echo.Context) error {
	status := map[string]interface{}{
		"status":   "ok",
		"payments": appCtx(c).Checkout().Configured(),
	}
	sqlDB, err := GetDB(c).DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	status["database"] = "ok"
	return ok(c, status)
}
