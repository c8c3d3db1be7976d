// Package audit emits a structured trail of every balance mutation outcome.
// A missed Apply means a permanently wrong balance, so failures here are
// logged at error level and never swallowed.
package audit

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finledger/backend/internal/logging"
)

type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Delta         int64     `json:"delta"`
	Balance       int64     `json:"balance"`
	Status        string    `json:"status"`
	Details       any       `json:"details"`
}

type Logger struct {
	log *logrus.Entry
}

func NewLogger() *Logger {
	return &Logger{log: logging.For("audit")}
}

// LogApply records one accepted balance mutation.
func (a *Logger) LogApply(transactionID, accountID string, delta, resultingBalance int64) {
	a.emit(logrus.InfoLevel, Event{
		Timestamp:     time.Now(),
		EventType:     "BALANCE_APPLY",
		TransactionID: transactionID,
		AccountID:     accountID,
		Delta:         delta,
		Balance:       resultingBalance,
		Status:        "SUCCESS",
	})
}

// LogDuplicate records a dropped redelivery of an already-applied transition.
func (a *Logger) LogDuplicate(transactionID, accountID string, transitionSeq int) {
	a.emit(logrus.WarnLevel, Event{
		Timestamp:     time.Now(),
		EventType:     "DUPLICATE_DROPPED",
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "SKIPPED",
		Details:       map[string]int{"transition_seq": transitionSeq},
	})
}

func (a *Logger) LogError(transactionID, accountID string, err error) {
	a.emit(logrus.ErrorLevel, Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(transactionID, accountID, operation, details string) {
	a.emit(logrus.InfoLevel, Event{
		Timestamp:     time.Now(),
		EventType:     operation,
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	})
}

func (a *Logger) emit(level logrus.Level, event Event) {
	a.log.WithFields(logrus.Fields{
		logging.FieldTransactionID: event.TransactionID,
		logging.FieldAccountID:     event.AccountID,
		logging.FieldDelta:         event.Delta,
		logging.FieldBalance:       event.Balance,
		logging.FieldStatus:        event.Status,
		"details":                  event.Details,
	}).Log(level, "AUDIT: "+event.EventType)
}
