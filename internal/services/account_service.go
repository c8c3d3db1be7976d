package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finledger/backend/internal/logging"
	"github.com/finledger/backend/internal/models"
	"github.com/finledger/backend/internal/money"
	"github.com/finledger/backend/internal/schedule"
)

type AccountService struct {
	db           *sql.DB
	transactions *TransactionService
	validator    *ValidationHelper
	log          *logrus.Entry
}

func NewAccountService(db *sql.DB, transactions *TransactionService) *AccountService {
	return &AccountService{
		db:           db,
		transactions: transactions,
		validator:    NewValidationHelper(),
		log:          logging.For("accounts"),
	}
}

// CreateAccount opens a new account
// @Summary Create account
// @Description Open an account; a non-zero opening balance is recorded as a settled INITIAL_BALANCE transaction
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body models.CreateAccountRequest true "Account data"
// @Success 201 {object} object{success=bool,account=models.Account}
// @Failure 400 {object} ErrorResponse
// @Router /accounts [post]
func (as *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var opening int64
	if req.OpeningBalance != "" {
		var err error
		if opening, err = money.Parse(req.OpeningBalance); err != nil {
			SendDomainError(w, models.NewDomainError(models.KindInvalidAmount,
				"invalid opening balance %q: %v", req.OpeningBalance, err))
			return
		}
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Currency:  strings.ToUpper(req.Currency),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := as.db.Exec(`
		INSERT INTO accounts (id, name, balance, currency, version, created_at, updated_at)
		VALUES ($1, $2, 0, $3, 1, $4, $4)`,
		account.ID, account.Name, account.Currency, now)
	if err != nil {
		as.log.WithField(logging.FieldError, err).Error("failed to create account")
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	// The opening balance flows through the normal creation path: a settled
	// INITIAL_BALANCE transaction, applied by the mutation protocol.
	if opening > 0 {
		plan, err := schedule.BuildPlan(schedule.Request{
			AccountID:         account.ID,
			Description:       "Opening balance",
			TotalAmount:       opening,
			OperationType:     models.OpInitialBalance,
			InitialStatus:     models.StatusPaid,
			DueDate:           now,
			TotalInstallments: 1,
		})
		if err != nil {
			SendDomainError(w, err)
			return
		}
		if _, err := as.transactions.createSeries(r.Context(), plan, nil); err != nil {
			SendDomainError(w, err)
			return
		}
		account.Balance = opening
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"account": account,
	})
}

// GetAccount retrieves an account by ID
// @Summary Get account
// @Description Retrieve an account and its current balance
// @Tags accounts
// @Produce json
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId} [get]
func (as *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	account, err := as.fetchAccount(accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendDomainError(w, models.NewDomainError(models.KindAccountNotFound, "account %s not found", accountID))
		} else {
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// AccountBalanceEnquiry retrieves the current balance for an account
// @Summary Get account balance
// @Description Retrieve the current balance for a given account ID
// @Tags accounts
// @Produce json
// @Param accountId query string true "Account ID"
// @Success 200 {object} object{responseCode=string,accountId=string,availableBalance=int64,formatted=string,status=string}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/balance-enquiry [get]
func (as *AccountService) AccountBalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("accountId"))
	if accountID == "" {
		SendErrorResponse(w, "accountId is required", http.StatusBadRequest, nil)
		return
	}

	account, err := as.fetchAccount(accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendDomainError(w, models.NewDomainError(models.KindAccountNotFound, "account %s not found", accountID))
		} else {
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"responseCode":     "00",
		"accountId":        account.ID,
		"availableBalance": account.Balance,
		"formatted":        money.Format(account.Balance),
		"currency":         account.Currency,
		"status":           "SUCCESS",
	})
}

func (as *AccountService) fetchAccount(accountID string) (*models.Account, error) {
	var account models.Account
	err := as.db.QueryRow(`
		SELECT id, name, balance, currency, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&account.ID, &account.Name, &account.Balance, &account.Currency,
		&account.Version, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		return nil, err
	}
	return &account, nil
}
