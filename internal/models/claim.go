package models

import (
	"time"
)

// Claim statuses. A claim starts out pending from the claim-creation flow,
// moves to partial once any payment lands and completed once the cumulative
// amount paid covers the item price.
const (
	ClaimStatusPending   = "pending"
	ClaimStatusPartial   = "partial"
	ClaimStatusCompleted = "completed"
)

type Claim struct {
	ID               string    `json:"id" db:"id"`
	PaymentReference string    `json:"payment_reference" db:"payment_reference"`
	ItemID           string    `json:"item_id" db:"item_id"`
	SupporterName    string    `json:"supporter_name" db:"supporter_name"`
	AmountPaid       int64     `json:"amount_paid" db:"amount_paid"` // cumulative, in kobo
	Status           string    `json:"status" db:"status"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type Item struct {
	ID         string `json:"id" db:"id"`
	WishlistID string `json:"wishlist_id" db:"wishlist_id"`
	Name       string `json:"name" db:"name"`
	Price      int64  `json:"price" db:"price"` // in kobo
	ImageURL   string `json:"image_url" db:"image_url"`
}

type Wishlist struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Title  string `json:"title" db:"title"`
	Slug   string `json:"slug" db:"slug"`
}
