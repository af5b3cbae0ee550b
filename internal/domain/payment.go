package domain

import "time"

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentCanceled  = "canceled"
	PaymentExpired   = "expired"
)

const (
	OrderConfirmed = "confirmed"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

var OrderStatuses = []string{OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled}

// Payment tracks one provider payment intent for a product purchase
type Payment struct {
	ID                    int64             `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	ProductId             int64             `gorm:"index" json:"product_id,string"`
	BuyerId               int64             `gorm:"index" json:"buyer_id,string"`
	SellerId              int64             `gorm:"index" json:"seller_id,string"`
	Amount                float64           `json:"amount"`
	Currency              string            `gorm:"size:3" json:"currency"`
	Status                string            `gorm:"size:16;index" json:"status"`
	StripePaymentIntentId string            `gorm:"size:64;uniqueIndex" json:"stripe_payment_intent_id"`
	PaymentMethodId       string            `gorm:"size:64" json:"payment_method_id,omitempty"`
	Metadata              map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

// Order is created once a payment succeeds; the seller drives it afterwards
type Order struct {
	ID              int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	PaymentId       int64      `gorm:"uniqueIndex" json:"payment_id,string"`
	ProductId       int64      `gorm:"index" json:"product_id,string"`
	BuyerId         int64      `gorm:"index" json:"buyer_id,string"`
	SellerId        int64      `gorm:"index" json:"seller_id,string"`
	Status          string     `gorm:"size:16;index" json:"status"`
	ShippingAddress string     `json:"shipping_address,omitempty"`
	TrackingNumber  string     `gorm:"size:128" json:"tracking_number,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ShippedAt       *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}
