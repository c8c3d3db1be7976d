package models

import (
	"time"
)

// BalanceEvent is one append-only ledger entry, written once per accepted
// balance mutation and never updated or deleted. The (transaction_id,
// transition_seq) pair is unique: a redelivered notification for an already
// applied transition collides and is dropped instead of double-applying.
type BalanceEvent struct {
	ID               int64     `json:"id" db:"id"`
	EventID          string    `json:"event_id" db:"event_id"`
	AccountID        string    `json:"account_id" db:"account_id"`
	TransactionID    string    `json:"transaction_id" db:"transaction_id"`
	Delta            int64     `json:"delta" db:"delta"` // signed, in cents
	PreviousStatus   Status    `json:"previous_status,omitempty" db:"previous_status"`
	NewStatus        Status    `json:"new_status" db:"new_status"`
	TransitionSeq    int       `json:"transition_seq" db:"transition_seq"`
	ResultingBalance int64     `json:"resulting_balance" db:"resulting_balance"`
	OccurredAt       time.Time `json:"occurred_at" db:"occurred_at"`
}
