// Package checkout creates payment intents for product purchases and applies
// the provider's webhook events to payments and orders.
package checkout

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/souqlab/souq/internal/account"
	"github.com/souqlab/souq/internal/currency"
	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/internal/stripepay"
	"github.com/souqlab/souq/pkg/common"
	"github.com/souqlab/souq/pkg/metrics"
)

var (
	ErrNotConfigured        = errors.New("payment system not configured")
	ErrWebhookNotConfigured = errors.New("webhook not configured")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUnsupportedCurrency  = errors.New("unsupported currency")
	ErrProductNotFound      = errors.New("product not found")
	ErrSelfPurchase         = errors.New("cannot purchase your own product")
	ErrProductUnavailable   = errors.New("product is no longer available")
	ErrMissingSignature     = errors.New("no signature")
)

// Provider event types handled by HandleEvent
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

// Publisher is the event bus as seen by checkout
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// CustomerResolver finds or creates the buyer's provider customer
type CustomerResolver interface {
	EnsureStripeCustomer(ctx context.Context, userID int64, cc account.CustomerCreator) (string, error)
}

// IntentResult is returned to the buyer's client to confirm the payment
type IntentResult struct {
	ClientSecret    string  `json:"client_secret"`
	PaymentIntentID string  `json:"payment_intent_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	FormattedAmount string  `json:"formatted_amount"`
}

type Service struct {
	gateway   stripepay.Gateway
	products  ProductRepository
	payments  PaymentRepository
	fulfiller FulfillmentRepository
	converter *currency.Converter
	bus       Publisher
	customers CustomerResolver
}

// NewService wires checkout to a gorm database. gateway may be nil when no
// provider key is configured.
func NewService(db *gorm.DB, gateway stripepay.Gateway, converter *currency.Converter, bus Publisher) *Service {
	repo := NewGormRepository(db)
	if converter == nil {
		converter = currency.NewConverter(nil)
	}
	return &Service{
		gateway:   gateway,
		products:  repo,
		payments:  repo,
		fulfiller: repo,
		converter: converter,
		bus:       bus,
	}
}

// WithCustomers attaches intents to provider customers resolved by r
func (s *Service) WithCustomers(r CustomerResolver) *Service {
	s.customers = r
	return s
}

// Configured reports whether a payment provider is available
func (s *Service) Configured() bool {
	if s.gateway == nil {
		return false
	}
	if c, ok := s.gateway.(*stripepay.Client); ok && c == nil {
		return false
	}
	return true
}

// WebhookConfigured reports whether webhook deliveries can be verified
func (s *Service) WebhookConfigured() bool {
	return s.Configured() && s.gateway.WebhookConfigured()
}

// CreatePaymentIntent starts a purchase of productID by buyerID, charged in
// currencyCode (EGP when empty).
func (s *Service) CreatePaymentIntent(ctx context.Context, buyerID, productID int64, currencyCode string) (*IntentResult, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if buyerID == 0 {
		return nil, ErrUnauthorized
	}
	code := currency.Normalize(currencyCode)
	if !currency.IsSupported(code) {
		return nil, errors.Wrap(ErrUnsupportedCurrency, code)
	}

	product, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "query product")
	}
	if product.SellerId == buyerID {
		return nil, ErrSelfPurchase
	}
	if product.Status != domain.ProductActive {
		return nil, ErrProductUnavailable
	}

	amount := product.Price
	if code != currency.Base {
		amount, err = s.converter.Convert(product.Price, currency.Base, code)
		if err != nil {
			return nil, err
		}
	}

	var customerID string
	if s.customers != nil {
		customerID, err = s.customers.EnsureStripeCustomer(ctx, buyerID, s.gateway)
		if err != nil {
			zap.L().Warn("could not resolve payment customer", zap.Int64("buyer_id", buyerID), zap.Error(err))
		}
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, stripepay.IntentRequest{
		Amount:    amount,
		Currency:  code,
		ProductID: product.ID,
		SellerID:  product.SellerId,
		BuyerID:   buyerID,
		Metadata: map[string]string{
			"productTitle":    product.Title,
			"productCategory": product.Category,
		},
		CustomerID: customerID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:                    common.UUIDint64(),
		ProductId:             product.ID,
		BuyerId:               buyerID,
		SellerId:              product.SellerId,
		Amount:                amount,
		Currency:              code,
		Status:                domain.PaymentPending,
		StripePaymentIntentId: intent.ID,
		Metadata:              intent.Metadata,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		// the intent exists at the provider, the webhook can still settle it
		zap.L().Error("error saving payment record",
			zap.String("payment_intent_id", intent.ID), zap.Error(err))
	} else {
		metrics.Inc("payment_intent_created")
	}

	return &IntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Currency:        code,
		FormattedAmount: currency.Format(amount, code),
	}, nil
}

// HandleWebhook verifies a raw webhook delivery and applies it
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.WebhookConfigured() {
		return ErrWebhookNotConfigured
	}
	if signature == "" {
		return ErrMissingSignature
	}
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		metrics.ObserveWebhook("unknown", "rejected")
		return err
	}
	return s.HandleEvent(ctx, event)
}

// HandleEvent applies a verified provider event. Events may be redelivered,
// applying one twice leaves a single order.
func (s *Service) HandleEvent(ctx context.Context, event *stripepay.Event) error {
	var err error
	outcome := "handled"
	switch event.Type {
	case EventIntentSucceeded:
		err = s.paymentSucceeded(ctx, &event.Intent)
	case EventIntentFailed:
		err = s.paymentFailed(ctx, &event.Intent)
	case EventIntentCanceled:
		err = s.paymentCanceled(ctx, &event.Intent)
	default:
		outcome = "ignored"
		zap.L().Info("Unhandled event type", zap.String("type", event.Type), zap.String("event_id", event.ID))
	}
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveWebhook(event.Type, outcome)
	return err
}

func (s *Service) paymentSucceeded(ctx context.Context, intent *stripepay.Intent) error {
	zap.L().Info("payment succeeded", zap.String("payment_intent_id", intent.ID))
	updates := map[string]interface{}{
		"status":       domain.PaymentCompleted,
		"completed_at": time.Now(),
	}
	if intent.PaymentMethodID != "" {
		updates["payment_method_id"] = intent.PaymentMethodID
	}
	if _, err := s.payments.UpdateByIntentID(ctx, intent.ID, updates); err != nil {
		zap.L().Error("error updating payment", zap.String("payment_intent_id", intent.ID), zap.Error(err))
		return nil
	}

	payment, err := s.payments.GetByIntentID(ctx, intent.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		zap.L().Warn("no payment record for intent", zap.String("payment_intent_id", intent.ID))
		return nil
	} else if err != nil {
		return errors.Wrap(err, "query payment")
	}

	order, product, created, err := s.fulfiller.Fulfill(ctx, payment)
	if err != nil {
		return err
	}
	if !created {
		zap.L().Info("order already exists for payment",
			zap.Int64("payment_id", payment.ID), zap.Int64("order_id", order.ID))
		return nil
	}
	metrics.Inc("order_created")
	ev := domain.OrderEvent{
		OrderID:      order.ID,
		ProductID:    order.ProductId,
		BuyerID:      order.BuyerId,
		SellerID:     order.SellerId,
		Status:       order.Status,
		ProductTitle: product.Title,
	}
	s.publish(domain.TopicOrderCreated, ev)
	if product.Status == domain.ProductSold {
		metrics.Inc("order_oversold")
		zap.L().Warn("order created for a product that was already sold",
			zap.Int64("product_id", order.ProductId),
			zap.Int64("order_id", order.ID),
			zap.Int64("payment_id", payment.ID))
		s.publish(domain.TopicOrderOversold, ev)
	}
	return nil
}

func (s *Service) paymentFailed(ctx context.Context, intent *stripepay.Intent) error {
	zap.L().Info("payment failed", zap.String("payment_intent_id", intent.ID))
	n, err := s.payments.UpdateByIntentID(ctx, intent.ID,
		map[string]interface{}{"status": domain.PaymentFailed}, domain.PaymentCompleted)
	if err != nil {
		return errors.Wrap(err, "update payment")
	}
	if n == 0 {
		return nil
	}
	payment, err := s.payments.GetByIntentID(ctx, intent.ID)
	if err != nil {
		return errors.Wrap(err, "query payment")
	}
	s.publish(domain.TopicPaymentFailed, domain.PaymentEvent{
		PaymentID: payment.ID,
		ProductID: payment.ProductId,
		BuyerID:   payment.BuyerId,
		SellerID:  payment.SellerId,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Status:    payment.Status,
	})
	return nil
}

func (s *Service) paymentCanceled(ctx context.Context, intent *stripepay.Intent) error {
	zap.L().Info("payment canceled", zap.String("payment_intent_id", intent.ID))
	_, err := s.payments.UpdateByIntentID(ctx, intent.ID,
		map[string]interface{}{"status": domain.PaymentCanceled}, domain.PaymentCompleted)
	return errors.Wrap(err, "update payment")
}

// ExpireStalePayments marks pending payments older than ttl as expired
func (s *Service) ExpireStalePayments(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.payments.ExpirePending(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, errors.Wrap(err, "expire pending payments")
	}
	if n > 0 {
		zap.L().Info("expired stale payments", zap.Int64("count", n), zap.String("ttl", ttl.String()))
	}
	return n, nil
}

func (s *Service) publish(topic string, event interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(topic, event)
}

