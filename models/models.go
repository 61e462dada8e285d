package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product page being monitored for price changes.
type Product struct {
	ID                   int64               `json:"id" db:"id"`
	UserID               int64               `json:"user_id" db:"user_id"`
	URL                  string              `json:"url" db:"url"`
	Name                 string              `json:"name" db:"name"`
	CurrentPrice         decimal.NullDecimal `json:"current_price" db:"current_price"`
	Currency             string              `json:"currency" db:"currency"`
	ImageURL             string              `json:"image_url" db:"image_url"`
	IsActive             bool                `json:"is_active" db:"is_active"`
	CheckIntervalMinutes int                 `json:"check_interval_minutes" db:"check_interval_minutes"`
	LastCheckedAt        *time.Time          `json:"last_checked_at" db:"last_checked_at"`
	CreatedAt            time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" db:"updated_at"`
}

// HasPrice returns true if the product has a known current price.
func (p *Product) HasPrice() bool {
	return p.CurrentPrice.Valid
}

// CheckInterval returns the re-check interval as a duration.
func (p *Product) CheckInterval() time.Duration {
	return time.Duration(p.CheckIntervalMinutes) * time.Minute
}

// ProductWithAlerts is a product plus its active alert count, for listings.
type ProductWithAlerts struct {
	Product
	AlertCount int `json:"alert_count"`
}

// PriceAlert represents a price drop alert on a product. TriggeredAt is nil
// until the alert fires; the price checker only ever sets it, clearing it
// again (reactivation) is an API operation.
type PriceAlert struct {
	ID          int64           `json:"id" db:"id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	TargetPrice decimal.Decimal `json:"target_price" db:"target_price"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	TriggeredAt *time.Time      `json:"triggered_at" db:"triggered_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// PriceHistory represents a price point in time. Rows are append-only: one at
// product creation and one per check cycle where the observed price differs
// from the stored current price.
type PriceHistory struct {
	ID         int64           `json:"id" db:"id"`
	ProductID  int64           `json:"product_id" db:"product_id"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Currency   string          `json:"currency" db:"currency"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
}

// User owns products and receives alert emails.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ExtractedPrice is the result of a successful extraction. Name and ImageURL
// are best-effort and may be empty; Price is always positive.
type ExtractedPrice struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Name     string          `json:"name,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
}

// PriceDropNotification is a queued notification request for one triggered
// alert. The notifier loads everything else it needs itself.
type PriceDropNotification struct {
	ProductID int64           `json:"product_id"`
	AlertID   int64           `json:"alert_id"`
	Price     decimal.Decimal `json:"price"`
}

// CreateProductRequest is the request to start tracking a product. The manual
// fields are the fallback when extraction finds no price on the page.
type CreateProductRequest struct {
	URL                  string           `json:"url"`
	TargetPrice          decimal.Decimal  `json:"target_price"`
	CheckIntervalMinutes int              `json:"check_interval_minutes"`
	ManualPrice          *decimal.Decimal `json:"manual_price,omitempty"`
	ManualName           string           `json:"manual_name,omitempty"`
	ManualCurrency       string           `json:"manual_currency,omitempty"`
}

// UpdateProductRequest updates tracking settings for a product.
type UpdateProductRequest struct {
	CheckIntervalMinutes *int  `json:"check_interval_minutes,omitempty"`
	IsActive             *bool `json:"is_active,omitempty"`
}

// CreateAlertRequest creates an additional alert on a product.
type CreateAlertRequest struct {
	TargetPrice decimal.Decimal `json:"target_price"`
}

// UpdateAlertRequest retargets, toggles, or reactivates an alert.
type UpdateAlertRequest struct {
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
	Reactivate  bool             `json:"reactivate,omitempty"`
}

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates an existing user.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a session token and its owner.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
