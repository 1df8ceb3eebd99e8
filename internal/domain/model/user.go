package model

import "time"

// Identity is the caller extracted from a verified bearer token.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// User is an authenticated account with its credit balance. The balance is
// mutated only through atomic increments at the storage layer.
type User struct {
	ID            string    `json:"id"                       db:"id"`
	Email         string    `json:"email"                    db:"email"`
	Credits       float64   `json:"credits"                  db:"credits"`
	WebhookSecret *string   `json:"webhook_secret,omitempty" db:"webhook_secret"`
	CreatedAt     time.Time `json:"created_at"               db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"               db:"updated_at"`
}
