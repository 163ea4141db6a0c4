package models

import "gorm.io/gorm"

// PointsPackage is a purchasable bundle of marketplace points.
type PointsPackage struct {
	gorm.Model
	Name        string `gorm:"not null;uniqueIndex" json:"name"`
	Description string `json:"description"`
	Points      int    `gorm:"not null" json:"points"`
	Price       int    `gorm:"not null" json:"price"` // in cents
	Currency    string `gorm:"default:'usd'" json:"currency"`
	IsPopular   bool   `gorm:"default:false" json:"is_popular"`
}

// PaymentTransaction tracks a Stripe top-up from intent to settlement.
type PaymentTransaction struct {
	gorm.Model
	UserID    uint  `gorm:"not null;index" json:"user_id"`
	PackageID *uint `json:"package_id,omitempty"`

	Points        int    `gorm:"not null" json:"points"`
	Amount        int    `json:"amount"` // in cents
	Currency      string `gorm:"default:'usd'" json:"currency"`
	PaymentMethod string `json:"payment_method"`
	PaymentStatus string `gorm:"default:'pending'" json:"payment_status"` // requires_payment_method, succeeded, failed
	Description   string `json:"description"`

	StripePaymentIntentID string `gorm:"index" json:"stripe_payment_intent_id"`
	StripeChargeID        string `json:"stripe_charge_id"`
	ReceiptURL            string `json:"receipt_url,omitempty"`

	// Relations
	Package *PointsPackage `json:"package,omitempty"`
}
