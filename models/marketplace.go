package models

import "gorm.io/gorm"

// UserService is a listing sold for points.
type UserService struct {
	gorm.Model
	SellerID    uint   `gorm:"not null;index" json:"seller_id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PricePoints int    `gorm:"not null" json:"price_points"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	// Relations
	Seller *User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// ServicePurchase is written by purchase_service together with both
// points movements.
type ServicePurchase struct {
	gorm.Model
	ServiceID   uint   `gorm:"not null;index" json:"service_id"`
	BuyerID     uint   `gorm:"not null;index" json:"buyer_id"`
	SellerID    uint   `gorm:"not null;index" json:"seller_id"`
	PricePoints int    `gorm:"not null" json:"price_points"`
	Status      string `gorm:"not null;default:'completed'" json:"status"`
}
