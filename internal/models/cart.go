package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the per-user mutable shopping list. Created lazily on first add and
// deliberately left untouched by order placement.
type Cart struct {
	BaseModel
	UserID uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	Items  []CartItem `json:"items,omitempty"`
}

type CartItem struct {
	BaseModel
	CartID    uuid.UUID `gorm:"type:uuid;index" json:"cart_id"`
	ProductID uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  int       `json:"quantity"`
	Variant   string    `json:"variant"`
	AddedAt   time.Time `json:"added_at"`
}

// WishlistItem marks a product a user saved for later. One row per
// (user, product) pair.
type WishlistItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;index:idx_wishlist_user_product,unique" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;index:idx_wishlist_user_product,unique" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
}
