package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finledger/backend/internal/audit"
	"github.com/finledger/backend/internal/events"
	"github.com/finledger/backend/internal/logging"
	"github.com/finledger/backend/internal/models"
	"github.com/finledger/backend/internal/money"
	"github.com/finledger/backend/internal/schedule"
)

type TransactionService struct {
	db         *sql.DB
	dispatcher *events.Dispatcher
	validator  *ValidationHelper
	audit      *audit.Logger
	log        *logrus.Entry
}

func NewTransactionService(db *sql.DB, dispatcher *events.Dispatcher) *TransactionService {
	return &TransactionService{
		db:         db,
		dispatcher: dispatcher,
		validator:  NewValidationHelper(),
		audit:      audit.NewLogger(),
		log:        logging.For("transactions"),
	}
}

// CreateTransaction creates a transaction or an installment series
// @Summary Create transactions
// @Description Schedule and persist one transaction, or a series of dated installments
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body models.CreateTransactionRequest true "Transaction data"
// @Success 201 {object} object{success=bool,transactionIds=[]string,count=int}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions [post]
func (ts *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTransactionRequest

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	planReq, err := ts.buildScheduleRequest(&req)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	plan, err := schedule.BuildPlan(*planReq)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	meta := models.Metadata{"ip_address": clientIP(r)}
	ids, err := ts.createSeries(r.Context(), plan, meta)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":        true,
		"transactionIds": ids,
		"count":          len(ids),
	})
}

// buildScheduleRequest parses the API payload into domain types. All domain
// validation errors short-circuit before anything is persisted.
func (ts *TransactionService) buildScheduleRequest(req *models.CreateTransactionRequest) (*schedule.Request, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return nil, models.NewDomainError(models.KindInvalidAmount, "invalid amount %q: %v", req.Amount, err)
	}

	op, err := models.ParseOperationType(req.OperationType)
	if err != nil {
		return nil, err
	}

	status := models.StatusPending
	if req.Status != "" {
		if status, err = models.ParseStatus(req.Status); err != nil {
			return nil, err
		}
	}

	installments := req.TotalInstallments
	if installments == 0 {
		installments = 1
	}

	var recurrence models.RecurrencePattern
	if req.RecurrencePattern != "" {
		if recurrence, err = models.ParseRecurrencePattern(req.RecurrencePattern); err != nil {
			return nil, err
		}
	}

	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = time.Now().UTC()
	}

	return &schedule.Request{
		AccountID:         req.AccountID,
		Description:       req.Description,
		TotalAmount:       amount,
		OperationType:     op,
		InitialStatus:     status,
		DueDate:           dueDate,
		TotalInstallments: installments,
		Recurrence:        recurrence,
	}, nil
}

// createSeries persists every draft in one database transaction (no partial
// installment sets), then raises one creation notification per record. A
// failed balance mutation does not unwind the creation: the dispatcher has
// surfaced it for retry, and the records themselves are valid.
func (ts *TransactionService) createSeries(ctx context.Context, drafts []schedule.Draft, meta models.Metadata) ([]string, error) {
	var exists bool
	err := ts.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, drafts[0].AccountID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewDomainError(models.KindAccountNotFound, "account %s not found", drafts[0].AccountID)
	}

	dbTx, err := ts.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	now := time.Now().UTC()
	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		txID := uuid.NewString()
		_, err := dbTx.Exec(`
			INSERT INTO transactions
			(transaction_id, account_id, description, amount, operation_type, status, due_date, installment, recurrence, version, metadata, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11, $11)`,
			txID, d.AccountID, d.Description, d.Amount, string(d.OperationType),
			string(d.Status), d.DueDate, d.Installment, string(d.Recurrence), meta, now)
		if err != nil {
			return nil, err
		}
		ids = append(ids, txID)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	for i, d := range drafts {
		ev := events.TransactionCreated{
			TransactionID: ids[i],
			AccountID:     d.AccountID,
			Amount:        d.Amount,
			OperationType: d.OperationType,
			Status:        d.Status,
			TransitionSeq: 1,
			OccurredAt:    now,
		}
		if err := ts.dispatcher.TransactionCreated(ctx, ev); err != nil {
			ts.audit.LogError(ids[i], d.AccountID, err)
		}
	}

	return ids, nil
}

// UpdateTransactionStatus transitions a transaction between statuses
// @Summary Change transaction status
// @Description Validate and apply a status transition, updating the account balance when the transition enters or leaves settlement
// @Tags transactions
// @Accept json
// @Produce json
// @Param txId path string true "Transaction ID"
// @Param transition body models.StatusChangeRequest true "Requested transition"
// @Success 200 {object} object{success=bool,transactionId=string,previousStatus=string,newStatus=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /transactions/{txId}/status [patch]
func (ts *TransactionService) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	var req models.StatusChangeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	prev, err := models.ParseStatus(req.PreviousStatus)
	if err != nil {
		SendDomainError(w, err)
		return
	}
	next, err := models.ParseStatus(req.NewStatus)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	ev, err := ts.transition(r.Context(), txID, prev, next)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	if ev != nil {
		if err := ts.dispatcher.TransactionStatusChanged(r.Context(), *ev); err != nil {
			// The transition itself stands; the mutation failure has been
			// surfaced for retry and must not be reported as a rejection.
			ts.audit.LogError(txID, ev.AccountID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":        true,
		"transactionId":  txID,
		"previousStatus": string(prev),
		"newStatus":      string(next),
	})
}

// transition validates and records one status change. It returns a nil event
// for a self-transition: status unchanged, nothing to re-apply.
func (ts *TransactionService) transition(ctx context.Context, txID string, prev, next models.Status) (*events.TransactionStatusChanged, error) {
	dbTx, err := ts.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	var (
		accountID string
		amount    int64
		opType    string
		current   string
		version   int
	)
	err = dbTx.QueryRow(`
		SELECT account_id, amount, operation_type, status, version
		FROM transactions
		WHERE transaction_id = $1
		FOR UPDATE`, txID).Scan(&accountID, &amount, &opType, &current, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NewDomainError(models.KindTransactionNotFound, "transaction %s not found", txID)
		}
		return nil, err
	}

	currentStatus := models.Status(current)
	if prev != currentStatus {
		return nil, models.NewDomainError(models.KindStaleStatusTransition,
			"transaction %s is %s, not %s", txID, currentStatus, prev)
	}

	if next == currentStatus {
		return nil, nil
	}

	if !currentStatus.CanTransitionTo(next) {
		return nil, models.NewDomainError(models.KindInvalidTransition,
			"transition %s -> %s is not permitted", currentStatus, next)
	}

	result, err := dbTx.Exec(`
		UPDATE transactions
		SET status = $1, version = version + 1, updated_at = $2
		WHERE transaction_id = $3 AND version = $4`,
		string(next), time.Now().UTC(), txID, version)
	if err != nil {
		return nil, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, models.NewDomainError(models.KindStaleStatusTransition,
			"transaction %s was modified concurrently", txID)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	return &events.TransactionStatusChanged{
		TransactionID:  txID,
		AccountID:      accountID,
		Amount:         amount,
		OperationType:  models.OperationType(opType),
		PreviousStatus: currentStatus,
		NewStatus:      next,
		TransitionSeq:  version + 1,
		OccurredAt:     time.Now().UTC(),
	}, nil
}

// GetTransaction retrieves a specific transaction
// @Summary Get transaction by ID
// @Description Retrieve a transaction by its ID
// @Tags transactions
// @Produce json
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{txId} [get]
func (ts *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	tx, err := ts.fetchTransaction(txID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendDomainError(w, models.NewDomainError(models.KindTransactionNotFound, "transaction %s not found", txID))
		} else {
			SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

// ListTransactions retrieves transactions with optional filters
// @Summary List transactions
// @Description Get a list of transactions with optional filtering
// @Tags transactions
// @Produce json
// @Param accountId query string false "Filter by account ID"
// @Param status query string false "Filter by status"
// @Param limit query int false "Maximum rows to return (default: 50)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	status := r.URL.Query().Get("status")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	transactions, err := ts.fetchTransactions(accountID, status, limit)
	if err != nil {
		ts.log.WithField(logging.FieldError, err).Error("failed to list transactions")
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// DeleteTransaction removes an unsettled transaction
// @Summary Delete transaction
// @Description Delete a transaction; settled (PAID) transactions must be reversed first
// @Tags transactions
// @Produce json
// @Param txId path string true "Transaction ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /transactions/{txId} [delete]
func (ts *TransactionService) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	var status string
	err := ts.db.QueryRow(`SELECT status FROM transactions WHERE transaction_id = $1`, txID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			SendDomainError(w, models.NewDomainError(models.KindTransactionNotFound, "transaction %s not found", txID))
		} else {
			SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	if models.Status(status).IsSettled() {
		SendDomainError(w, models.NewDomainError(models.KindInvalidTransition,
			"transaction %s is settled; reverse it before deleting", txID))
		return
	}

	if _, err := ts.db.Exec(`DELETE FROM transactions WHERE transaction_id = $1`, txID); err != nil {
		SendErrorResponse(w, "Failed to delete transaction", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// Database helper functions

func (ts *TransactionService) fetchTransaction(txID string) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var installment models.InstallmentInfo
	var hasInstallment bool
	var recurrence string
	err := ts.db.QueryRow(`
        SELECT transaction_id, account_id, description, amount, operation_type, status, due_date,
               installment, installment IS NOT NULL, COALESCE(recurrence, ''), version, created_at, updated_at
        FROM transactions
        WHERE transaction_id = $1
    `, txID).Scan(
		&tx.TransactionID, &tx.AccountID, &tx.Description, &tx.Amount, &tx.OperationType,
		&tx.Status, &tx.DueDate, &installment, &hasInstallment, &recurrence,
		&tx.Version, &tx.CreatedAt, &tx.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	if hasInstallment {
		tx.Installment = &installment
	}
	tx.Recurrence = models.RecurrencePattern(recurrence)
	return tx, nil
}

func (ts *TransactionService) fetchTransactions(accountID, status string, limit int) ([]models.Transaction, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	baseQuery := `
        SELECT transaction_id, account_id, description, amount, operation_type, status, due_date,
               installment, installment IS NOT NULL, COALESCE(recurrence, ''), version, created_at, updated_at
        FROM transactions
    `

	if accountID != "" {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIndex))
		args = append(args, accountID)
		argIndex++
	}

	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, status)
		argIndex++
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY due_date DESC, created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := ts.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		var installment models.InstallmentInfo
		var hasInstallment bool
		var recurrence string
		err := rows.Scan(
			&tx.TransactionID, &tx.AccountID, &tx.Description, &tx.Amount, &tx.OperationType,
			&tx.Status, &tx.DueDate, &installment, &hasInstallment, &recurrence,
			&tx.Version, &tx.CreatedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if hasInstallment {
			tx.Installment = &installment
		}
		tx.Recurrence = models.RecurrencePattern(recurrence)
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.Split(forwarded, ",")[0]
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
