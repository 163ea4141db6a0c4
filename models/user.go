package models

import (
	"time"

	"gorm.io/gorm"
)

// Marketplace roles chosen at sign-up
const (
	UserRoleBuyer      = "buyer"
	UserRoleSupplier   = "supplier"
	UserRoleFreelancer = "freelancer"
	UserRoleInvestor   = "investor"
)

// SignupBonusPoints is credited to every new profile
const SignupBonusPoints = 100

// User is a profile. Login is passwordless; PasswordHash holds the hash
// of a random secret nobody ever sees.
type User struct {
	gorm.Model

	// Authentication fields
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"not null" json:"-"`
	EmailVerified bool       `gorm:"default:false" json:"email_verified"`
	OTP           string     `json:"-"`
	OTPExpiresAt  time.Time  `json:"-"`
	OTPAttempts   int        `gorm:"default:0" json:"-"`
	TokenVersion  int        `gorm:"default:0" json:"-"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`

	// Profile information
	Name     string `gorm:"not null" json:"name"`
	Country  string `json:"country"`
	Role     string `gorm:"not null;default:'buyer'" json:"role"` // buyer, supplier, freelancer, investor
	Language string `gorm:"default:'en'" json:"language"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Marketplace balance
	Points           int     `gorm:"not null;default:0" json:"points"`
	StripeCustomerID *string `gorm:"index" json:"-"`

	// Relations
	Memberships []GroupMember `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

// PointTransaction is one signed movement on a user's points balance.
type PointTransaction struct {
	gorm.Model
	UserID       uint   `gorm:"not null;index" json:"user_id"`
	Amount       int    `gorm:"not null" json:"amount"` // negative for debits
	BalanceAfter int    `gorm:"not null" json:"balance_after"`
	Reason       string `gorm:"not null" json:"reason"` // signup_bonus, service_purchase, service_sale, top_up
	ReferenceID  *uint  `json:"reference_id,omitempty"`
}

const (
	PointsReasonSignup   = "signup_bonus"
	PointsReasonPurchase = "service_purchase"
	PointsReasonSale     = "service_sale"
	PointsReasonTopUp    = "top_up"
)
