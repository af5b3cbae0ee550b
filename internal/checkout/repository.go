package checkout

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/pkg/common"
)

// ProductRepository product lookups needed at checkout
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

// PaymentRepository handles database operations for payment records
type PaymentRepository interface {
	// Create inserts a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByIntentID retrieves a payment by the provider intent id
	GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error)

	// UpdateByIntentID applies updates to the payment for intentID and
	// reports how many rows changed. Rows whose status is in skip are left alone.
	UpdateByIntentID(ctx context.Context, intentID string, updates map[string]interface{}, skip ...string) (int64, error)

	// ExpirePending marks pending payments created before cutoff as expired
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// FulfillmentRepository turns a completed payment into an order
type FulfillmentRepository interface {
	// Fulfill creates the order for payment and marks its product sold in one
	// transaction. created is false when the order already existed.
	Fulfill(ctx context.Context, payment *domain.Payment) (order *domain.Order, product *domain.Product, created bool, err error)
}

// GormRepository is the GORM implementation of the checkout repositories
type GormRepository struct {
	db *gorm.DB
}

var (
	_ ProductRepository     = (*GormRepository)(nil)
	_ PaymentRepository     = (*GormRepository)(nil)
	_ FulfillmentRepository = (*GormRepository)(nil)
)

// NewGormRepository creates a new GORM-based repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *GormRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *GormRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", intentID).First(&p).Error
	return &p, err
}

func (r *GormRepository) UpdateByIntentID(ctx context.Context, intentID string, updates map[string]interface{}, skip ...string) (int64, error) {
	updates["updated_at"] = time.Now()
	query := r.db.WithContext(ctx).Model(&domain.Payment{}).Where("stripe_payment_intent_id = ?", intentID)
	if len(skip) > 0 {
		query = query.Where("status NOT IN ?", skip)
	}
	res := query.Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *GormRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("status = ? AND created_at < ?", domain.PaymentPending, cutoff).
		Updates(map[string]interface{}{
			"status":     domain.PaymentExpired,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *GormRepository) Fulfill(ctx context.Context, payment *domain.Payment) (*domain.Order, *domain.Product, bool, error) {
	var (
		order   domain.Order
		product domain.Product
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", payment.ProductId).First(&product).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "query product")
		}

		err = tx.Where("payment_id = ?", payment.ID).First(&order).Error
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return errors.Wrap(err, "query order")
		}

		now := time.Now()
		order = domain.Order{
			ID:        common.UUIDint64(),
			PaymentId: payment.ID,
			ProductId: payment.ProductId,
			BuyerId:   payment.BuyerId,
			SellerId:  payment.SellerId,
			Status:    domain.OrderConfirmed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&order).Error; err != nil {
			return errors.Wrap(err, "create order")
		}
		created = true

		return errors.Wrap(tx.Model(&domain.Product{}).Where("id = ?", payment.ProductId).
			Updates(map[string]interface{}{
				"status":     domain.ProductSold,
				"updated_at": now,
			}).Error, "mark product sold")
	})
	if err != nil {
		return nil, nil, false, err
	}
	return &order, &product, created, nil
}
