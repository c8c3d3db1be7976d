package models

import (
	"errors"
	"fmt"
)

// Stable machine-readable error kinds surfaced across the API boundary.
const (
	KindInvalidAmount            = "INVALID_AMOUNT"
	KindInvalidInstallmentCount  = "INVALID_INSTALLMENT_COUNT"
	KindMissingRecurrencePattern = "MISSING_RECURRENCE_PATTERN"
	KindUnknownOperationType     = "UNKNOWN_OPERATION_TYPE"
	KindStaleStatusTransition    = "STALE_STATUS_TRANSITION"
	KindInvalidTransition        = "INVALID_TRANSITION"
	KindAccountNotFound          = "ACCOUNT_NOT_FOUND"
	KindTransactionNotFound      = "TRANSACTION_NOT_FOUND"
)

// DomainError carries a stable kind plus a human-readable message. Internal
// error chains never cross the API boundary.
type DomainError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError builds a DomainError with a formatted message.
func NewDomainError(kind, format string, args ...any) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind string) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Kind == kind
}
