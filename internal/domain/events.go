package domain

// Event bus topics published by checkout and orders
const (
	TopicOrderCreated  = "order:created"
	TopicOrderStatus   = "order:status"
	TopicPaymentFailed = "payment:failed"
	// TopicOrderOversold follows TopicOrderCreated when the product had
	// already been sold to another buyer
	TopicOrderOversold = "order:oversold"
)

type OrderEvent struct {
	OrderID      int64
	ProductID    int64
	BuyerID      int64
	SellerID     int64
	Status       string
	ProductTitle string
}

type PaymentEvent struct {
	PaymentID int64
	ProductID int64
	BuyerID   int64
	SellerID  int64
	Amount    float64
	Currency  string
	Status    string
}
