package orders

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/internal/testutil"
)

type recordingBus struct {
	topics []string
	events []domain.OrderEvent
}

func (b *recordingBus) Publish(topic string, args ...interface{}) {
	b.topics = append(b.topics, topic)
	for _, a := range args {
		if ev, ok := a.(domain.OrderEvent); ok {
			b.events = append(b.events, ev)
		}
	}
}

// seed: seller 7 sold a lamp to buyer 8 (EGP) and a desk to buyer 9 (USD);
// a third payment by buyer 8 is still pending.
func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.Local) }
	products := []domain.Product{
		{ID: 1, Title: "Lamp", Price: 20, Category: "Home", Images: []string{"lamp.png"}, SellerId: 7, Status: domain.ProductSold},
		{ID: 2, Title: "Desk", Price: 90, Category: "Home", Images: []string{}, SellerId: 7, Status: domain.ProductSold},
		{ID: 3, Title: "Rug", Price: 40, Category: "Home", Images: []string{}, SellerId: 7, Status: domain.ProductActive},
	}
	require.NoError(t, db.Create(&products).Error)
	payments := []domain.Payment{
		{ID: 11, ProductId: 1, BuyerId: 8, SellerId: 7, Amount: 620, Currency: "EGP", Status: domain.PaymentCompleted, StripePaymentIntentId: "pi_1", CreatedAt: day(1)},
		{ID: 12, ProductId: 2, BuyerId: 9, SellerId: 7, Amount: 90, Currency: "USD", Status: domain.PaymentCompleted, StripePaymentIntentId: "pi_2", CreatedAt: day(5)},
		{ID: 13, ProductId: 3, BuyerId: 8, SellerId: 7, Amount: 1240, Currency: "EGP", Status: domain.PaymentPending, StripePaymentIntentId: "pi_3", CreatedAt: day(9)},
	}
	require.NoError(t, db.Create(&payments).Error)
	orders := []domain.Order{
		{ID: 21, PaymentId: 11, ProductId: 1, BuyerId: 8, SellerId: 7, Status: domain.OrderConfirmed, CreatedAt: day(1)},
		{ID: 22, PaymentId: 12, ProductId: 2, BuyerId: 9, SellerId: 7, Status: domain.OrderDelivered, CreatedAt: day(5)},
	}
	require.NoError(t, db.Create(&orders).Error)
}

func TestUserPayments(t *testing.T) {
	db := testutil.NewDB(t)
	seed(t, db)
	svc := NewService(db, nil)

	rows, err := svc.UserPayments(context.Background(), 8)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 13, rows[0].ID)
	require.NotNil(t, rows[1].Products)
	assert.Equal(t, "Lamp", rows[1].Products.Title)
	assert.Equal(t, []string{"lamp.png"}, rows[1].Products.Images)
	assert.Nil(t, rows[1].Products.Price)

	rows, err = svc.UserPayments(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestUserOrdersFilters(t *testing.T) {
	db := testutil.NewDB(t)
	seed(t, db)
	svc := NewService(db, nil)
	ctx := context.Background()

	rows, err := svc.UserOrders(ctx, 7, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 22, rows[0].ID)
	require.NotNil(t, rows[0].Payments)
	assert.Equal(t, "USD", rows[0].Payments.Currency)
	require.NotNil(t, rows[0].Products.Price)
	assert.Equal(t, 90.0, *rows[0].Products.Price)

	rows, err = svc.UserOrders(ctx, 7, Filter{Role: RoleBuyer})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = svc.UserOrders(ctx, 7, Filter{Status: domain.OrderConfirmed})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 21, rows[0].ID)

	rows, err = svc.UserOrders(ctx, 7, Filter{From: "2024-03-02", To: "March 5, 2024"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 22, rows[0].ID)

	_, err = svc.UserOrders(ctx, 7, Filter{Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = svc.UserOrders(ctx, 7, Filter{From: "not a date"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestUpdateStatus(t *testing.T) {
	db := testutil.NewDB(t)
	seed(t, db)
	bus := &recordingBus{}
	svc := NewService(db, bus)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, 21, 8, domain.OrderShipped, StatusPatch{})
	assert.ErrorIs(t, err, ErrNotSeller)
	_, err = svc.UpdateStatus(ctx, 21, 7, "lost", StatusPatch{})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.UpdateStatus(ctx, 99, 7, domain.OrderShipped, StatusPatch{})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	tracking := " EG123 "
	order, err := svc.UpdateStatus(ctx, 21, 7, domain.OrderShipped, StatusPatch{TrackingNumber: &tracking})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, order.Status)
	assert.Equal(t, "EG123", order.TrackingNumber)
	require.NotNil(t, order.ShippedAt)
	assert.Nil(t, order.DeliveredAt)

	order, err = svc.UpdateStatus(ctx, 21, 7, domain.OrderDelivered, StatusPatch{})
	require.NoError(t, err)
	require.NotNil(t, order.DeliveredAt)
	assert.Equal(t, "EG123", order.TrackingNumber)

	assert.Equal(t, []string{domain.TopicOrderStatus, domain.TopicOrderStatus}, bus.topics)
	assert.Equal(t, "Lamp", bus.events[0].ProductTitle)
	assert.EqualValues(t, 8, bus.events[1].BuyerID)
}

func TestExportCSV(t *testing.T) {
	db := testutil.NewDB(t)
	seed(t, db)
	svc := NewService(db, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), 8, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "order_id,role,product,status"))

	var rows []*csvOrder
	require.NoError(t, gocsv.UnmarshalBytes(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "buyer", rows[0].Role)
	assert.Equal(t, "Lamp", rows[0].Product)
	assert.Equal(t, 620.0, rows[0].Amount)
	assert.Equal(t, "EGP", rows[0].Currency)
}

func TestSellerStats(t *testing.T) {
	db := testutil.NewDB(t)
	seed(t, db)
	require.NoError(t, db.Create(&domain.Payment{
		ID: 14, ProductId: 3, BuyerId: 9, SellerId: 7, Amount: 100, Currency: "EGP",
		Status: domain.PaymentCompleted, StripePaymentIntentId: "pi_4",
	}).Error)
	svc := NewService(db, nil)

	out, err := svc.SellerStats(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, CurrencyStats{Currency: "EGP", Count: 2, Total: 720, Mean: 360, Median: 360}, out[0])
	assert.Equal(t, CurrencyStats{Currency: "USD", Count: 1, Total: 90, Mean: 90, Median: 90}, out[1])

	out, err = svc.SellerStats(context.Background(), 8)
	require.NoError(t, err)
	assert.Empty(t, out)
}
