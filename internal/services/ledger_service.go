package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/finledger/backend/internal/logging"
	"github.com/finledger/backend/internal/models"
)

// LedgerService reads the append-only balance history. Entries are written
// exclusively by the balance mutation protocol; this service never mutates
// them.
type LedgerService struct {
	db  *sql.DB
	log *logrus.Entry
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:  db,
		log: logging.For("ledger"),
	}
}

// History lists balance mutations for an account
// @Summary Get balance history
// @Description List the append-only balance mutation events for an account, ordered by occurrence time
// @Tags ledger
// @Produce json
// @Param accountId path string true "Account ID"
// @Param from query string false "Start of date range (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "End of date range (RFC3339 or YYYY-MM-DD)"
// @Param limit query int false "Maximum entries to return (default: 100)"
// @Success 200 {object} object{events=[]models.BalanceEvent,count=int}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts/{accountId}/history [get]
func (ls *LedgerService) History(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	from, err := parseRangeBound(r.URL.Query().Get("from"))
	if err != nil {
		SendErrorResponse(w, "Invalid 'from' date", http.StatusBadRequest, nil)
		return
	}
	to, err := parseRangeBound(r.URL.Query().Get("to"))
	if err != nil {
		SendErrorResponse(w, "Invalid 'to' date", http.StatusBadRequest, nil)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	events, err := ls.fetchHistory(accountID, from, to, limit)
	if err != nil {
		ls.log.WithFields(logrus.Fields{
			logging.FieldAccountID: accountID,
			logging.FieldError:     err,
		}).Error("failed to fetch balance history")
		SendErrorResponse(w, "Failed to fetch balance history", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountId": accountID,
		"events":    events,
		"count":     len(events),
	})
}

func (ls *LedgerService) fetchHistory(accountID string, from, to *time.Time, limit int) ([]models.BalanceEvent, error) {
	query := `
        SELECT id, event_id, account_id, transaction_id, delta, previous_status, new_status, transition_seq, resulting_balance, occurred_at
        FROM balance_events
        WHERE account_id = $1`
	args := []interface{}{accountID}
	argIndex := 2

	if from != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", argIndex)
		args = append(args, *from)
		argIndex++
	}
	if to != nil {
		query += fmt.Sprintf(" AND occurred_at <= $%d", argIndex)
		args = append(args, *to)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY occurred_at ASC, id ASC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := ls.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.BalanceEvent{}
	for rows.Next() {
		var ev models.BalanceEvent
		var prev string
		err := rows.Scan(&ev.ID, &ev.EventID, &ev.AccountID, &ev.TransactionID, &ev.Delta,
			&prev, &ev.NewStatus, &ev.TransitionSeq, &ev.ResultingBalance, &ev.OccurredAt)
		if err != nil {
			return nil, err
		}
		ev.PreviousStatus = models.Status(prev)
		events = append(events, ev)
	}

	return events, rows.Err()
}

func parseRangeBound(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
