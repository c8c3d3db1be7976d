package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finledger/backend/internal/audit"
	"github.com/finledger/backend/internal/events"
	"github.com/finledger/backend/internal/logging"
	"github.com/finledger/backend/internal/models"
)

// BalanceService is the balance mutation protocol: the only code path that
// ever changes an account balance. Per-account serialization comes from the
// row lock; at-most-once per transition comes from the unique event key
// (transaction_id, transition_seq): a redelivered notification collides on
// insert and is dropped without touching the balance.
type BalanceService struct {
	db    *sql.DB
	audit *audit.Logger
	log   *logrus.Entry
}

func NewBalanceService(db *sql.DB) *BalanceService {
	return &BalanceService{
		db:    db,
		audit: audit.NewLogger(),
		log:   logging.For("balance"),
	}
}

type mutation struct {
	TransactionID  string
	AccountID      string
	Delta          int64
	PreviousStatus models.Status
	NewStatus      models.Status
	TransitionSeq  int
}

// OnTransactionCreated applies the delta for a record whose initial status is
// already settled. Unsettled creations are a no-op.
func (s *BalanceService) OnTransactionCreated(ctx context.Context, ev events.TransactionCreated) error {
	if !ev.Status.IsSettled() {
		return nil
	}
	return s.apply(ctx, mutation{
		TransactionID: ev.TransactionID,
		AccountID:     ev.AccountID,
		Delta:         ev.OperationType.SignedAmount(ev.Amount),
		NewStatus:     ev.Status,
		TransitionSeq: ev.TransitionSeq,
	})
}

// OnTransactionStatusChanged applies the delta when a transition enters
// settlement and reverses it when one leaves. Transitions that stay on the
// same side of the settled predicate never mutate the balance.
func (s *BalanceService) OnTransactionStatusChanged(ctx context.Context, ev events.TransactionStatusChanged) error {
	wasSettled := ev.PreviousStatus.IsSettled()
	isSettled := ev.NewStatus.IsSettled()

	var delta int64
	switch {
	case !wasSettled && isSettled:
		delta = ev.OperationType.SignedAmount(ev.Amount)
	case wasSettled && !isSettled:
		delta = -ev.OperationType.SignedAmount(ev.Amount)
	default:
		return nil
	}

	return s.apply(ctx, mutation{
		TransactionID:  ev.TransactionID,
		AccountID:      ev.AccountID,
		Delta:          delta,
		PreviousStatus: ev.PreviousStatus,
		NewStatus:      ev.NewStatus,
		TransitionSeq:  ev.TransitionSeq,
	})
}

// apply performs one atomic read-modify-write of the account balance plus
// one ledger append. Balances may go negative; overdraft is a valid state.
func (s *BalanceService) apply(ctx context.Context, m mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(tx, m.AccountID)
	if err != nil {
		if err == sql.ErrNoRows {
			notFound := models.NewDomainError(models.KindAccountNotFound,
				"account %s not found", m.AccountID)
			s.audit.LogError(m.TransactionID, m.AccountID, notFound)
			return notFound
		}
		return err
	}

	newBalance := account.Balance + m.Delta

	inserted, err := s.appendEvent(tx, m, newBalance)
	if err != nil {
		return err
	}
	if !inserted {
		// Already applied this transition edge; drop the redelivery.
		s.audit.LogDuplicate(m.TransactionID, m.AccountID, m.TransitionSeq)
		return nil
	}

	if err := s.updateAccountBalance(tx, account.ID, newBalance, account.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.audit.LogApply(m.TransactionID, m.AccountID, m.Delta, newBalance)
	return nil
}

func (s *BalanceService) lockAccount(tx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT id, balance, version, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(&account.ID, &account.Balance, &account.Version, &account.UpdatedAt)

	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *BalanceService) appendEvent(tx *sql.Tx, m mutation, resultingBalance int64) (bool, error) {
	result, err := tx.Exec(`
		INSERT INTO balance_events (event_id, account_id, transaction_id, delta, previous_status, new_status, transition_seq, resulting_balance, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (transaction_id, transition_seq) DO NOTHING`,
		uuid.NewString(), m.AccountID, m.TransactionID, m.Delta,
		string(m.PreviousStatus), string(m.NewStatus), m.TransitionSeq,
		resultingBalance, time.Now().UTC())

	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *BalanceService) updateAccountBalance(tx *sql.Tx, accountID string, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), accountID, version)

	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}

	return nil
}
