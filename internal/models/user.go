package models

import "time"

type User struct {
	ID        string    `json:"id" example:"1"`                   // User ID
	Email     string    `json:"email" example:"user@example.com"` // User email
	Username  string    `json:"username" example:"adaeze"`        // Public username used in wishlist URLs
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
