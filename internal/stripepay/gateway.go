// Package stripepay wraps the payment provider: payment intents, customers and
// webhook verification.
package stripepay

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"

	"github.com/souqlab/souq/internal/currency"
	"github.com/souqlab/souq/pkg/common"
)

var (
	ErrWebhookNotConfigured = errors.New("webhook signing secret not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)

// IntentRequest is what checkout asks the provider to charge
type IntentRequest struct {
	Amount    float64 // major units in Currency
	Currency  string
	ProductID int64
	SellerID  int64
	BuyerID   int64
	Metadata  map[string]string

	// CustomerID attaches the intent to an existing provider customer
	CustomerID string
}

// Intent is the provider's view of a payment intent
type Intent struct {
	ID              string            `json:"id"`
	ClientSecret    string            `json:"-"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	PaymentMethodID string            `json:"payment_method"`
	Metadata        map[string]string `json:"metadata"`
}

// Event is a verified webhook delivery about a payment intent
type Event struct {
	ID     string
	Type   string
	Intent Intent
}

// Gateway is the payment provider as seen by the rest of the service
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
	WebhookConfigured() bool
}

// Client is the Stripe backed Gateway
type Client struct {
	api           *client.API
	webhookSecret string
}

var _ Gateway = (*Client)(nil)

// NewClient returns nil when no secret key is configured; callers treat a
// nil gateway as "payment system not configured".
func NewClient(secretKey, webhookSecret string) *Client {
	if strings.TrimSpace(secretKey) == "" {
		return nil
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api, webhookSecret: webhookSecret}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	metadata := map[string]string{
		"productId": formatID(req.ProductID),
		"sellerId":  formatID(req.SellerID),
		"buyerId":   formatID(req.BuyerID),
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(currency.MinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Metadata: metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	params.Context = ctx
	params.SetIdempotencyKey("pi-" + common.UUID())
	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "create payment intent")
	}
	return fromStripe(pi), nil
}

func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieve payment intent %s", id)
	}
	return fromStripe(pi), nil
}

func (c *Client) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", errors.Wrap(err, "create customer")
	}
	return cus.ID, nil
}

func (c *Client) WebhookConfigured() bool {
	return c.webhookSecret != ""
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.PaymentMethod != nil {
		in.PaymentMethodID = pi.PaymentMethod.ID
	}
	return in
}
