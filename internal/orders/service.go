// Package orders is the read side of purchases: payment history, order
// tracking for buyers and sellers, CSV export and sales statistics.
package orders

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/pkg/common"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotSeller     = errors.New("only the seller can update this order")
	ErrInvalidStatus = errors.New("invalid order status")
	ErrInvalidFilter = errors.New("invalid filter")
)

// Roles accepted by Filter.Role
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// Publisher is the event bus as seen by orders
type Publisher interface {
	Publish(topic string, args ...interface{})
}

type ProductSummary struct {
	Title    string   `json:"title"`
	Images   []string `json:"images"`
	Category string   `json:"category"`
	Price    *float64 `json:"price,omitempty"`
}

type PaymentSummary struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

type PaymentView struct {
	domain.Payment
	Products *ProductSummary `json:"products"`
}

type OrderView struct {
	domain.Order
	Products *ProductSummary `json:"products"`
	Payments *PaymentSummary `json:"payments"`
}

// Filter narrows UserOrders. From and To take free-form dates.
type Filter struct {
	Role   string
	Status string
	From   string
	To     string
}

// StatusPatch optional fields written together with a status change
type StatusPatch struct {
	TrackingNumber  *string `json:"tracking_number"`
	Notes           *string `json:"notes"`
	ShippingAddress *string `json:"shipping_address"`
}

// CurrencyStats summarizes completed sales in one currency
type CurrencyStats struct {
	Currency string  `json:"currency"`
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
}

type Service struct {
	db  *gorm.DB
	bus Publisher
}

func NewService(db *gorm.DB, bus Publisher) *Service {
	return &Service{db: db, bus: bus}
}

// UserPayments lists payments where the user is buyer or seller, newest first
func (s *Service) UserPayments(ctx context.Context, userID int64) ([]PaymentView, error) {
	var rows []domain.Payment
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query payments")
	}
	ids := make([]int64, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.ProductId)
	}
	products, err := s.products(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]PaymentView, 0, len(rows))
	for _, p := range rows {
		v := PaymentView{Payment: p}
		if prod, ok := products[p.ProductId]; ok {
			v.Products = &ProductSummary{Title: prod.Title, Images: prod.Images, Category: prod.Category}
		}
		views = append(views, v)
	}
	return views, nil
}

// UserOrders lists orders where the user is buyer or seller, newest first
func (s *Service) UserOrders(ctx context.Context, userID int64, f Filter) ([]OrderView, error) {
	query := s.db.WithContext(ctx).Model(&domain.Order{})
	switch f.Role {
	case "":
		query = query.Where("buyer_id = ? OR seller_id = ?", userID, userID)
	case RoleBuyer:
		query = query.Where("buyer_id = ?", userID)
	case RoleSeller:
		query = query.Where("seller_id = ?", userID)
	default:
		return nil, errors.Wrapf(ErrInvalidFilter, "unknown role %q", f.Role)
	}
	if f.Status != "" {
		if !common.InSlice(f.Status, domain.OrderStatuses) {
			return nil, errors.Wrapf(ErrInvalidFilter, "unknown status %q", f.Status)
		}
		query = query.Where("status = ?", f.Status)
	}
	if f.From != "" {
		from, err := dateparse.ParseLocal(f.From)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFilter, "from: %s", err)
		}
		query = query.Where("created_at >= ?", from)
	}
	if f.To != "" {
		to, err := dateparse.ParseLocal(f.To)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFilter, "to: %s", err)
		}
		// a bare date includes the whole day
		if to.Hour() == 0 && to.Minute() == 0 && to.Second() == 0 && to.Nanosecond() == 0 {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		query = query.Where("created_at <= ?", to)
	}

	var rows []domain.Order
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query orders")
	}

	productIDs := make([]int64, 0, len(rows))
	paymentIDs := make([]int64, 0, len(rows))
	for _, o := range rows {
		productIDs = append(productIDs, o.ProductId)
		paymentIDs = append(paymentIDs, o.PaymentId)
	}
	products, err := s.products(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	payments := make(map[int64]domain.Payment)
	if len(paymentIDs) > 0 {
		var prows []domain.Payment
		if err := s.db.WithContext(ctx).Where("id IN ?", paymentIDs).Find(&prows).Error; err != nil {
			return nil, errors.Wrap(err, "query order payments")
		}
		for _, p := range prows {
			payments[p.ID] = p
		}
	}

	views := make([]OrderView, 0, len(rows))
	for _, o := range rows {
		v := OrderView{Order: o}
		if prod, ok := products[o.ProductId]; ok {
			price := prod.Price
			v.Products = &ProductSummary{Title: prod.Title, Images: prod.Images, Category: prod.Category, Price: &price}
		}
		if p, ok := payments[o.PaymentId]; ok {
			v.Payments = &PaymentSummary{Amount: p.Amount, Currency: p.Currency, Status: p.Status}
		}
		views = append(views, v)
	}
	return views, nil
}

// UpdateStatus moves an order to status on behalf of its seller. Shipping
// stamps shipped_at, delivery stamps delivered_at.
func (s *Service) UpdateStatus(ctx context.Context, orderID, sellerID int64, status string, patch StatusPatch) (*domain.Order, error) {
	if !common.InSlice(status, domain.OrderStatuses) {
		return nil, errors.Wrap(ErrInvalidStatus, status)
	}
	var order domain.Order
	err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	if order.SellerId != sellerID {
		return nil, ErrNotSeller
	}

	now := time.Now()
	order.Status = status
	order.UpdatedAt = now
	switch status {
	case domain.OrderShipped:
		order.ShippedAt = &now
	case domain.OrderDelivered:
		order.DeliveredAt = &now
	}
	if patch.TrackingNumber != nil {
		order.TrackingNumber = strings.TrimSpace(*patch.TrackingNumber)
	}
	if patch.Notes != nil {
		order.Notes = *patch.Notes
	}
	if patch.ShippingAddress != nil {
		order.ShippingAddress = *patch.ShippingAddress
	}
	if err := s.db.WithContext(ctx).Save(&order).Error; err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if s.bus != nil {
		var titles []string
		s.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", order.ProductId).Pluck("title", &titles)
		title := ""
		if len(titles) > 0 {
			title = titles[0]
		}
		s.bus.Publish(domain.TopicOrderStatus, domain.OrderEvent{
			OrderID:      order.ID,
			ProductID:    order.ProductId,
			BuyerID:      order.BuyerId,
			SellerID:     order.SellerId,
			Status:       order.Status,
			ProductTitle: title,
		})
	}
	return &order, nil
}

type csvOrder struct {
	OrderID        int64   `csv:"order_id"`
	Role           string  `csv:"role"`
	Product        string  `csv:"product"`
	Status         string  `csv:"status"`
	Amount         float64 `csv:"amount"`
	Currency       string  `csv:"currency"`
	TrackingNumber string  `csv:"tracking_number"`
	CreatedAt      string  `csv:"created_at"`
	ShippedAt      string  `csv:"shipped_at"`
	DeliveredAt    string  `csv:"delivered_at"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ExportCSV writes the user's orders as CSV to w
func (s *Service) ExportCSV(ctx context.Context, userID int64, w io.Writer) error {
	views, err := s.UserOrders(ctx, userID, Filter{})
	if err != nil {
		return err
	}
	rows := make([]*csvOrder, 0, len(views))
	for _, v := range views {
		row := &csvOrder{
			OrderID:        v.ID,
			Role:           RoleBuyer,
			Status:         v.Status,
			TrackingNumber: v.TrackingNumber,
			CreatedAt:      formatTime(&v.CreatedAt),
			ShippedAt:      formatTime(v.ShippedAt),
			DeliveredAt:    formatTime(v.DeliveredAt),
		}
		if v.SellerId == userID {
			row.Role = RoleSeller
		}
		if v.Products != nil {
			row.Product = v.Products.Title
		}
		if v.Payments != nil {
			row.Amount = v.Payments.Amount
			row.Currency = v.Payments.Currency
		}
		rows = append(rows, row)
	}
	return errors.Wrap(gocsv.Marshal(&rows, w), "write csv")
}

// SellerStats summarizes the seller's completed payments per currency
func (s *Service) SellerStats(ctx context.Context, sellerID int64) ([]CurrencyStats, error) {
	var rows []domain.Payment
	err := s.db.WithContext(ctx).
		Select("amount", "currency").
		Where("seller_id = ? AND status = ?", sellerID, domain.PaymentCompleted).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query sales")
	}
	amounts := make(map[string]stats.Float64Data)
	for _, p := range rows {
		amounts[p.Currency] = append(amounts[p.Currency], p.Amount)
	}
	out := make([]CurrencyStats, 0, len(amounts))
	for code, data := range amounts {
		total, _ := data.Sum()
		mean, _ := data.Mean()
		median, _ := data.Median()
		rtotal, _ := stats.Round(total, 2)
		rmean, _ := stats.Round(mean, 2)
		rmedian, _ := stats.Round(median, 2)
		out = append(out, CurrencyStats{
			Currency: code,
			Count:    data.Len(),
			Total:    rtotal,
			Mean:     rmean,
			Median:   rmedian,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *Service) products(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	out := make(map[int64]domain.Product)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Product
	err := s.db.WithContext(ctx).
		Select("id", "title", "images", "category", "price").
		Where("id IN ?", ids).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}
