package models

import (
	"time"
)

// Account owns a running balance. The balance is mutated only by the balance
// mutation protocol; at any instant it equals the sum of signed amounts of
// every transaction currently in PAID status for the account. Balances may go
// negative: overdraft is a domain state, not an error.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Balance   int64     `json:"balance" db:"balance"` // in cents
	Currency  string    `json:"currency" db:"currency"`
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateAccountRequest is the API payload for opening an account. A non-zero
// opening balance is recorded as an INITIAL_BALANCE transaction through the
// normal creation path, never written directly.
type CreateAccountRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	Currency       string `json:"currency" validate:"required,len=3"`
	OpeningBalance string `json:"openingBalance" validate:"omitempty"`
}
