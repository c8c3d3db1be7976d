// Package logging configures structured logging for the service.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Standardized field names for structured logging. Keeping these consistent
// makes log output easy to filter by account or transaction.
const (
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldEventID       = "event_id"
	FieldDelta         = "delta"
	FieldBalance       = "balance"
	FieldStatus        = "status"
	FieldPrevStatus    = "previous_status"
	FieldNewStatus     = "new_status"
	FieldOperation     = "operation"
	FieldCount         = "count"
	FieldError         = "error"
)

// Init configures the global logrus logger. Level comes from LOG_LEVEL
// (default info); FORMAT=json switches to JSON output for log shippers.
func Init() {
	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// For returns a logger entry tagged with the originating component.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
