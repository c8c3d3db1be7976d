package models

import "strings"

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
)

// allowedTransitions holds every permitted (from, to) status pair. Every
// distinct pair is currently reachable; corrections and reversals move
// settled transactions back out of PAID.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {StatusPaid: true, StatusFailed: true},
	StatusPaid:    {StatusPending: true, StatusFailed: true},
	StatusFailed:  {StatusPending: true, StatusPaid: true},
}

// ParseStatus converts textual input to a known status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusPaid, StatusFailed:
		return st, nil
	}
	return "", NewDomainError(KindInvalidTransition, "unknown status %q", s)
}

// IsSettled reports whether a transaction in this status is reflected in the
// account balance. This predicate, not the raw status, drives the balance
// mutation protocol.
func (s Status) IsSettled() bool {
	return s == StatusPaid
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. A self-transition is not listed here: callers treat it as a no-op,
// not an error.
func (s Status) CanTransitionTo(next Status) bool {
	return allowedTransitions[s][next]
}
