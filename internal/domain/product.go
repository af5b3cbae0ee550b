package domain

import "time"

const (
	ProductActive   = "active"
	ProductSold     = "sold"
	ProductInactive = "inactive"
)

var ProductCategories = []string{
	"Electronics", "Fashion", "Home", "Toys", "Books", "Sports", "Beauty", "Automotive",
}

var ProductConditions = []string{"New", "Like New", "Used", "Refurbished"}

// AllCategories is the listing filter value that disables category filtering
const AllCategories = "All Categories"

// Product is a single listing offered by a seller. Price is kept in USD,
// checkout converts it into the buyer's currency.
type Product struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Title       string    `gorm:"size:200;index" json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `gorm:"size:64;index" json:"category"`
	Condition   string    `gorm:"size:32" json:"condition"`
	Images      []string  `gorm:"serializer:json" json:"images"`
	SellerId    int64     `gorm:"index" json:"seller_id,string"`
	Status      string    `gorm:"size:16;index" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// SellerInfo is the public slice of a seller profile attached to listings
type SellerInfo struct {
	ID        int64  `json:"id,string"`
	FullName  string `json:"full_name"`
	AvatarUrl string `json:"avatar_url,omitempty"`
}

// ProductView is a product enriched for a particular viewer
type ProductView struct {
	Product
	Seller       SellerInfo `json:"seller"`
	IsWishlisted bool       `json:"is_wishlisted"`
}

// WishlistItem marks a product saved by a user
type WishlistItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserId    int64     `gorm:"uniqueIndex:idx_wishlist_user_product" json:"user_id,string"`
	ProductId int64     `gorm:"uniqueIndex:idx_wishlist_user_product;index" json:"product_id,string"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WishlistItem) TableName() string {
	return "wishlists"
}
