package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// RecurrencePattern is the period between consecutive installments.
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "DAILY"
	RecurrenceWeekly  RecurrencePattern = "WEEKLY"
	RecurrenceMonthly RecurrencePattern = "MONTHLY"
	RecurrenceYearly  RecurrencePattern = "YEARLY"
)

// ParseRecurrencePattern converts textual input to a known pattern.
func ParseRecurrencePattern(s string) (RecurrencePattern, error) {
	p := RecurrencePattern(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return p, nil
	}
	return "", NewDomainError(KindMissingRecurrencePattern, "unknown recurrence pattern %q", s)
}

// InstallmentInfo describes one transaction's position inside an installment
// series. Stored as a JSONB column.
type InstallmentInfo struct {
	TotalInstallments  int   `json:"total_installments"`
	CurrentInstallment int   `json:"current_installment"`
	InstallmentValue   int64 `json:"installment_value"` // minor units
}

// Value implements driver.Valuer for InstallmentInfo
func (i *InstallmentInfo) Value() (driver.Value, error) {
	if i == nil {
		return nil, nil
	}
	return json.Marshal(i)
}

// Scan implements sql.Scanner for InstallmentInfo
func (i *InstallmentInfo) Scan(value any) error {
	if value == nil {
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, i)
}

// Transaction represents one concrete, dated balance-affecting record. A
// single creation request may produce many of these (one per installment).
// Amounts are always positive; the sign of the balance effect is derived from
// the operation type, never stored.
type Transaction struct {
	ID            int               `json:"id" db:"id"`
	TransactionID string            `json:"transaction_id" db:"transaction_id"`
	AccountID     string            `json:"account_id" db:"account_id"`
	Description   string            `json:"description" db:"description"`
	Amount        int64             `json:"amount" db:"amount"` // in cents
	OperationType OperationType     `json:"operation_type" db:"operation_type"`
	Status        Status            `json:"status" db:"status"`
	DueDate       time.Time         `json:"due_date" db:"due_date"`
	Installment   *InstallmentInfo  `json:"installment,omitempty" db:"installment"`
	Recurrence    RecurrencePattern `json:"recurrence,omitempty" db:"recurrence"`
	Version       int               `json:"version" db:"version"` // bumped per accepted transition
	Metadata      Metadata          `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// CreateTransactionRequest is the API payload for creating a transaction or
// an installment series. Amount is a decimal string with at most two decimal
// places, e.g. "100.00".
type CreateTransactionRequest struct {
	AccountID         string    `json:"accountId" validate:"required,max=64"`
	Description       string    `json:"description" validate:"required,max=200"`
	Amount            string    `json:"amount" validate:"required"`
	OperationType     string    `json:"operationType" validate:"required"`
	Status            string    `json:"status" validate:"omitempty,oneof=PENDING PAID FAILED"`
	DueDate           time.Time `json:"dueDate"`
	TotalInstallments int       `json:"totalInstallments" validate:"omitempty,min=1,max=480"`
	RecurrencePattern string    `json:"recurrencePattern"`
}

// StatusChangeRequest carries a requested status transition. The caller must
// state the status it believes the transaction is in; a mismatch is rejected
// as stale rather than applied.
type StatusChangeRequest struct {
	PreviousStatus string `json:"previousStatus" validate:"required"`
	NewStatus      string `json:"newStatus" validate:"required"`
}
