package shopapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/souqlab/souq/internal/checkout"
	"github.com/souqlab/souq/internal/currency"
	"github.com/souqlab/souq/internal/stripepay"
	"github.com/souqlab/souq/internal/webserver"
)

const maxWebhookBody = 1 << 16

type paymentIntentRequest struct {
	ProductID       string `json:"product_id"`
	ProductIDCompat string `json:"productId"` // camelCase spelling sent by older clients
	Currency        string `json:"currency"`
}

func registerCheckoutRoutes() {
	// the intent route authenticates itself so an unconfigured provider
	// reports 500 before the 401
	webserver.PubPOST("/checkout/payment-intents", createPaymentIntent)
	webserver.PubPOST("/webhooks/stripe", stripeWebhook)
}

func createPaymentIntent(c echo.Context) error {
	svc := appCtx(c).Checkout()
	if !svc.Configured() {
		return fail(c, http.StatusInternalServerError, "NOT_CONFIGURED", "Payment system not configured", nil)
	}
	buyerID := webserver.CurrentUserID(c)
	if buyerID == 0 {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}

	var req paymentIntentRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", nil)
	}
	raw := strings.TrimSpace(req.ProductID)
	if raw == "" {
		raw = strings.TrimSpace(req.ProductIDCompat)
	}
	productID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || productID <= 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}

	res, err := svc.CreatePaymentIntent(c.Request().Context(), buyerID, productID, req.Currency)
	switch {
	case err == nil:
		audit(c, "create_payment_intent", res.PaymentIntentID)
		return ok(c, res)
	case errors.Is(err, checkout.ErrNotConfigured):
		return fail(c, http.StatusInternalServerError, "NOT_CONFIGURED", "Payment system not configured", nil)
	case errors.Is(err, checkout.ErrUnauthorized):
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	case errors.Is(err, checkout.ErrUnsupportedCurrency):
		return fail(c, http.StatusBadRequest, "UNSUPPORTED_CURRENCY", "Unsupported currency", currency.Supported())
	case errors.Is(err, checkout.ErrProductNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	case errors.Is(err, checkout.ErrSelfPurchase):
		return fail(c, http.StatusBadRequest, "SELF_PURCHASE", "Cannot purchase your own product", nil)
	case errors.Is(err, checkout.ErrProductUnavailable):
		return fail(c, http.StatusConflict, "UNAVAILABLE", "Product is no longer available", nil)
	}
	zap.L().Error("Error creating payment intent", zap.Int64("product_id", productID), zap.Error(err))
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create payment intent", nil)
}

func stripeWebhook(c echo.Context) error {
	svc := appCtx(c).Checkout()
	if !svc.WebhookConfigured() {
		zap.L().Warn("Stripe webhook not configured")
		return fail(c, http.StatusInternalServerError, "NOT_CONFIGURED", "Webhook not configured", nil)
	}
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		zap.L().Warn("Webhook body too large", zap.Int64("limit", tooLarge.Limit))
		return fail(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Payload too large", nil)
	} else if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read body", nil)
	}

	err = svc.HandleWebhook(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return ok(c, map[string]bool{"received": true})
	case errors.Is(err, checkout.ErrWebhookNotConfigured), errors.Is(err, stripepay.ErrWebhookNotConfigured):
		return fail(c, http.StatusInternalServerError, "NOT_CONFIGURED", "Webhook not configured", nil)
	case errors.Is(err, checkout.ErrMissingSignature):
		return fail(c, http.StatusBadRequest, "NO_SIGNATURE", "No signature", nil)
	case errors.Is(err, stripepay.ErrInvalidSignature):
		zap.L().Warn("Webhook signature verification failed", zap.Error(err))
		return fail(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Invalid signature", nil)
	}
	zap.L().Error("Webhook handler error", zap.Error(err))
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Webhook handler failed", nil)
}
