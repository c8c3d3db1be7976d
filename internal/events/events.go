// Package events carries the notifications that drive balance mutations.
// Transports may redeliver; the balance protocol's event key makes
// redelivery harmless, so the dispatcher only has to stay ordered per call.
package events

import (
	"time"

	"github.com/finledger/backend/internal/models"
)

// TransactionCreated is raised once per persisted transaction record.
type TransactionCreated struct {
	TransactionID string               `json:"transaction_id"`
	AccountID     string               `json:"account_id"`
	Amount        int64                `json:"amount"`
	OperationType models.OperationType `json:"operation_type"`
	Status        models.Status        `json:"status"`
	TransitionSeq int                  `json:"transition_seq"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// TransactionStatusChanged is raised once per accepted status transition.
// TransitionSeq is the transaction row's version after the transition; a
// redelivered notification carries the same value and is dropped downstream.
type TransactionStatusChanged struct {
	TransactionID  string               `json:"transaction_id"`
	AccountID      string               `json:"account_id"`
	Amount         int64                `json:"amount"`
	OperationType  models.OperationType `json:"operation_type"`
	PreviousStatus models.Status        `json:"previous_status"`
	NewStatus      models.Status        `json:"new_status"`
	TransitionSeq  int                  `json:"transition_seq"`
	OccurredAt     time.Time            `json:"occurred_at"`
}
