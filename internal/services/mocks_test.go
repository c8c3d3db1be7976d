package services

import (
	"context"
	"database/sql"

	"github.com/finledger/backend/internal/events"
)

// recordingApplier stands in for the balance service so handler tests can
// assert which events a request raised without a second database mock.
type recordingApplier struct {
	created       []events.TransactionCreated
	statusChanged []events.TransactionStatusChanged
	err           error
}

func (a *recordingApplier) OnTransactionCreated(ctx context.Context, ev events.TransactionCreated) error {
	if a.err != nil {
		return a.err
	}
	a.created = append(a.created, ev)
	return nil
}

func (a *recordingApplier) OnTransactionStatusChanged(ctx context.Context, ev events.TransactionStatusChanged) error {
	if a.err != nil {
		return a.err
	}
	a.statusChanged = append(a.statusChanged, ev)
	return nil
}

func newTestTransactionService(db *sql.DB) (*TransactionService, *recordingApplier) {
	applier := &recordingApplier{}
	return NewTransactionService(db, events.NewDispatcher(applier, nil)), applier
}
