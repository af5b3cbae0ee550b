// Package catalog serves product listings and wishlists.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/pkg/common"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNotOwner        = errors.New("only the seller can change this product")
	ErrInvalidProduct  = errors.New("invalid product")
)

const unknownSeller = "Unknown Seller"

// ProductInput is a new listing
type ProductInput struct {
	Title       string   `json:"title" validate:"required,min=1,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Price       float64  `json:"price" validate:"gt=0"`
	Category    string   `json:"category" validate:"required"`
	Condition   string   `json:"condition" validate:"required"`
	Images      []string `json:"images" validate:"max=10"`
}

// ProductPatch changes the non-nil fields of a listing
type ProductPatch struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	Price       *float64  `json:"price" validate:"omitempty,gt=0"`
	Category    *string   `json:"category"`
	Condition   *string   `json:"condition"`
	Images      *[]string `json:"images" validate:"omitempty,max=10"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

// Filter narrows the public listing
type Filter struct {
	Category   string
	Search     string
	MinPrice   *float64
	MaxPrice   *float64
	Conditions []string
	Page       int
	PageSize   int
	Sort       string
	Order      string
}

var sortColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"title":      "title",
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func validCategory(c string) bool  { return common.InSlice(c, domain.ProductCategories) }
func validCondition(c string) bool { return common.InSlice(c, domain.ProductConditions) }

func (s *Service) Create(ctx context.Context, sellerID int64, in ProductInput) (*domain.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.Price <= 0 {
		return nil, errors.Wrap(ErrInvalidProduct, "title and a positive price are required")
	}
	if !validCategory(in.Category) {
		return nil, errors.Wrapf(ErrInvalidProduct, "unknown category %q", in.Category)
	}
	if !validCondition(in.Condition) {
		return nil, errors.Wrapf(ErrInvalidProduct, "unknown condition %q", in.Condition)
	}
	if in.Images == nil {
		in.Images = []string{}
	}
	now := time.Now()
	p := &domain.Product{
		ID:          common.UUIDint64(),
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Category:    in.Category,
		Condition:   in.Condition,
		Images:      in.Images,
		SellerId:    sellerID,
		Status:      domain.ProductActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// List returns active products, newest first unless sorted otherwise
func (s *Service) List(ctx context.Context, f Filter, viewerID int64) ([]domain.ProductView, int64, error) {
	db := s.db.WithContext(ctx).Model(&domain.Product{}).Where("status = ?", domain.ProductActive)

	if f.Category != "" && f.Category != domain.AllCategories {
		db = db.Where("category = ?", f.Category)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		if strings.EqualFold(db.Name(), "postgres") {
			db = db.Where("title ILIKE ? OR description ILIKE ?", "%"+q+"%", "%"+q+"%")
		} else {
			like := "%" + strings.ToLower(q) + "%"
			db = db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
		}
	}
	if f.MinPrice != nil {
		db = db.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		db = db.Where("price <= ?", *f.MaxPrice)
	}
	if len(f.Conditions) > 0 {
		db = db.Where("condition IN ?", f.Conditions)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}

	sortCol, ok := sortColumns[f.Sort]
	if !ok {
		sortCol = "created_at"
	}
	order := strings.ToUpper(f.Order)
	if order != "ASC" {
		order = "DESC"
	}
	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var rows []domain.Product
	if err := db.Order(sortCol + " " + order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return nil, 0, errors.Wrap(err, "query products")
	}
	views, err := s.enrich(ctx, rows, viewerID, false)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// Get returns a product in any status
func (s *Service) Get(ctx context.Context, id, viewerID int64) (*domain.ProductView, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, []domain.Product{*p}, viewerID, false)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) ListBySeller(ctx context.Context, sellerID int64) ([]domain.Product, error) {
	var rows []domain.Product
	err := s.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at DESC").Find(&rows).Error
	return rows, errors.Wrap(err, "query seller products")
}

func (s *Service) Update(ctx context.Context, id, sellerID int64, patch ProductPatch) (*domain.Product, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.SellerId != sellerID {
		return nil, ErrNotOwner
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, errors.Wrap(ErrInvalidProduct, "title is required")
		}
		p.Title = t
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		if *patch.Price <= 0 {
			return nil, errors.Wrap(ErrInvalidProduct, "price must be positive")
		}
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		if !validCategory(*patch.Category) {
			return nil, errors.Wrapf(ErrInvalidProduct, "unknown category %q", *patch.Category)
		}
		p.Category = *patch.Category
	}
	if patch.Condition != nil {
		if !validCondition(*patch.Condition) {
			return nil, errors.Wrapf(ErrInvalidProduct, "unknown condition %q", *patch.Condition)
		}
		p.Condition = *patch.Condition
	}
	if patch.Images != nil {
		p.Images = *patch.Images
	}
	if patch.Status != nil {
		if p.Status == domain.ProductSold {
			return nil, errors.Wrap(ErrInvalidProduct, "a sold product cannot be relisted")
		}
		p.Status = *patch.Status
	}
	p.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id, sellerID int64) error {
	p, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if p.SellerId != sellerID {
		return ErrNotOwner
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&domain.WishlistItem{}).Error; err != nil {
			return errors.Wrap(err, "delete wishlist entries")
		}
		return errors.Wrap(tx.Where("id = ?", id).Delete(&domain.Product{}).Error, "delete product")
	})
}

// AddToWishlist saves the product for the user; a second add reports
// alreadyExists instead of failing.
func (s *Service) AddToWishlist(ctx context.Context, userID, productID int64) (alreadyExists bool, err error) {
	if _, err := s.find(ctx, productID); err != nil {
		return false, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.WishlistItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "check wishlist")
	}
	if count > 0 {
		return true, nil
	}
	now := time.Now()
	err = s.db.WithContext(ctx).Create(&domain.WishlistItem{
		ID:        common.UUIDint64(),
		UserId:    userID,
		ProductId: productID,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true, nil
	}
	return false, errors.Wrap(err, "add to wishlist")
}

func (s *Service) RemoveFromWishlist(ctx context.Context, userID, productID int64) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&domain.WishlistItem{}).Error
	return errors.Wrap(err, "remove from wishlist")
}

// Wishlist returns the user's saved products, most recently saved first
func (s *Service) Wishlist(ctx context.Context, userID int64) ([]domain.ProductView, error) {
	var items []domain.WishlistItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, errors.Wrap(err, "query wishlist")
	}
	if len(items) == 0 {
		return []domain.ProductView{}, nil
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductId)
	}
	var rows []domain.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query wishlist products")
	}
	byID := make(map[int64]domain.Product, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	ordered := make([]domain.Product, 0, len(rows))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return s.enrich(ctx, ordered, userID, true)
}

func (s *Service) find(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "query product")
	}
	return &p, nil
}

// enrich attaches seller info and the viewer's wishlist flag. Seller and
// wishlist lookups run concurrently; a failed wishlist lookup only logs.
func (s *Service) enrich(ctx context.Context, rows []domain.Product, viewerID int64, allWishlisted bool) ([]domain.ProductView, error) {
	views := make([]domain.ProductView, len(rows))
	if len(rows) == 0 {
		return views, nil
	}

	sellerSet := make(map[int64]struct{})
	productIDs := make([]int64, 0, len(rows))
	for _, p := range rows {
		sellerSet[p.SellerId] = struct{}{}
		productIDs = append(productIDs, p.ID)
	}
	sellerIDs := make([]int64, 0, len(sellerSet))
	for id := range sellerSet {
		sellerIDs = append(sellerIDs, id)
	}

	var (
		profiles   []domain.UserProfile
		wishlisted = make(map[int64]bool)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.db.WithContext(gctx).Select("id", "full_name", "avatar_url").
			Where("id IN ?", sellerIDs).Find(&profiles).Error
		return errors.Wrap(err, "query seller profiles")
	})
	if viewerID != 0 && !allWishlisted {
		g.Go(func() error {
			var ids []int64
			err := s.db.WithContext(gctx).Model(&domain.WishlistItem{}).
				Where("user_id = ? AND product_id IN ?", viewerID, productIDs).
				Pluck("product_id", &ids).Error
			if err != nil {
				zap.L().Warn("could not fetch wishlist items", zap.Int64("user_id", viewerID), zap.Error(err))
				return nil
			}
			for _, id := range ids {
				wishlisted[id] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sellers := make(map[int64]domain.UserProfile, len(profiles))
	for _, p := range profiles {
		sellers[p.ID] = p
	}
	for i, p := range rows {
		seller := domain.SellerInfo{ID: p.SellerId, FullName: unknownSeller}
		if prof, ok := sellers[p.SellerId]; ok {
			seller.FullName = prof.FullName
			seller.AvatarUrl = prof.AvatarUrl
		}
		views[i] = domain.ProductView{
			Product:      p,
			Seller:       seller,
			IsWishlisted: allWishlisted || wishlisted[p.ID],
		}
	}
	return views, nil
}
