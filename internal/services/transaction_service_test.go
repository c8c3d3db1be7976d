package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/finledger/backend/internal/models"
)

func TestTransactionService_CreateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, applier := newTestTransactionService(db)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/transactions", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		service.CreateTransaction(w, req)
		return w
	}

	t.Run("invalid request body", func(t *testing.T) {
		w := post("invalid")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown operation type", func(t *testing.T) {
		w := post(`{"accountId":"acc1","description":"Rent","amount":"100.00","operationType":"GIFT"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing recurrence for installment series", func(t *testing.T) {
		w := post(`{"accountId":"acc1","description":"Rent","amount":"100.00","operationType":"PAYMENT","totalInstallments":3}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("account not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		w := post(`{"accountId":"ghost","description":"Rent","amount":"100.00","operationType":"PAYMENT"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("installment series persists every draft", func(t *testing.T) {
		applier.created = nil

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("acc1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		mock.ExpectBegin()
		// 100.00 over 3: remainder goes to the first installment.
		for i, amount := range []int64{3334, 3333, 3333} {
			mock.ExpectExec("INSERT INTO transactions").
				WithArgs(sqlmock.AnyArg(), "acc1", sqlmock.AnyArg(), amount, "PAYMENT", "PENDING",
					sqlmock.AnyArg(), sqlmock.AnyArg(), "MONTHLY", sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
		}
		mock.ExpectCommit()

		w := post(`{"accountId":"acc1","description":"Rent","amount":"100.00","operationType":"PAYMENT","totalInstallments":3,"recurrencePattern":"MONTHLY"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, true, response["success"])
		assert.Equal(t, float64(3), response["count"])

		assert.Len(t, applier.created, 3)
		for _, ev := range applier.created {
			assert.Equal(t, "acc1", ev.AccountID)
			assert.Equal(t, models.StatusPending, ev.Status)
			assert.Equal(t, 1, ev.TransitionSeq)
		}
	})

	t.Run("single settled transaction applies its delta", func(t *testing.T) {
		applier.created = nil

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("acc1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "acc1", sqlmock.AnyArg(), int64(25050), "DEPOSIT", "PAID",
				sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := post(`{"accountId":"acc1","description":"Opening","amount":"250.50","operationType":"DEPOSIT","status":"PAID"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		assert.Len(t, applier.created, 1)
		assert.Equal(t, models.StatusPaid, applier.created[0].Status)
		assert.Equal(t, int64(25050), applier.created[0].Amount)
	})
}

func TestTransactionService_UpdateTransactionStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, applier := newTestTransactionService(db)

	patch := func(txID, body string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Patch("/transactions/{txId}/status", service.UpdateTransactionStatus)

		req := httptest.NewRequest("PATCH", "/transactions/"+txID+"/status", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("accepted transition raises a status change event", func(t *testing.T) {
		applier.statusChanged = nil

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT account_id, amount, operation_type, status, version").
			WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "amount", "operation_type", "status", "version"}).
				AddRow("acc1", 5000, "DEPOSIT", "PENDING", 1))
		mock.ExpectExec("UPDATE transactions").
			WithArgs("PAID", sqlmock.AnyArg(), "tx1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := patch("tx1", `{"previousStatus":"PENDING","newStatus":"PAID"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		assert.Len(t, applier.statusChanged, 1)
		ev := applier.statusChanged[0]
		assert.Equal(t, models.StatusPending, ev.PreviousStatus)
		assert.Equal(t, models.StatusPaid, ev.NewStatus)
		assert.Equal(t, 2, ev.TransitionSeq)
	})

	t.Run("stale previous status is rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT account_id, amount, operation_type, status, version").
			WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "amount", "operation_type", "status", "version"}).
				AddRow("acc1", 5000, "DEPOSIT", "FAILED", 3))
		mock.ExpectRollback()

		w := patch("tx1", `{"previousStatus":"PENDING","newStatus":"PAID"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self transition is a no-op", func(t *testing.T) {
		applier.statusChanged = nil

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT account_id, amount, operation_type, status, version").
			WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "amount", "operation_type", "status", "version"}).
				AddRow("acc1", 5000, "DEPOSIT", "PAID", 2))
		mock.ExpectRollback()

		w := patch("tx1", `{"previousStatus":"PAID","newStatus":"PAID"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, applier.statusChanged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown status value", func(t *testing.T) {
		w := patch("tx1", `{"previousStatus":"PENDING","newStatus":"SETTLED"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("transaction not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT account_id, amount, operation_type, status, version").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		w := patch("ghost", `{"previousStatus":"PENDING","newStatus":"PAID"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_GetTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, _ := newTestTransactionService(db)

	get := func(txID string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Get("/transactions/{txId}", service.GetTransaction)

		req := httptest.NewRequest("GET", "/transactions/"+txID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("existing transaction", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT transaction_id, account_id, description, amount, operation_type, status, due_date").
			WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows([]string{
				"transaction_id", "account_id", "description", "amount", "operation_type", "status",
				"due_date", "installment", "has_installment", "recurrence", "version", "created_at", "updated_at",
			}).AddRow("tx1", "acc1", "Rent (1/3)", 3334, "PAYMENT", "PENDING",
				now, []byte(`{"total_installments":3,"current_installment":1,"installment_value":3334}`), true, "MONTHLY", 1, now, now))

		w := get("tx1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		var tx models.Transaction
		json.Unmarshal(w.Body.Bytes(), &tx)
		assert.Equal(t, "tx1", tx.TransactionID)
		assert.Equal(t, int64(3334), tx.Amount)
		if assert.NotNil(t, tx.Installment) {
			assert.Equal(t, 3, tx.Installment.TotalInstallments)
			assert.Equal(t, 1, tx.Installment.CurrentInstallment)
		}
	})

	t.Run("transaction not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT transaction_id, account_id, description, amount, operation_type, status, due_date").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		w := get("ghost")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTransactionService_ListTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, _ := newTestTransactionService(db)

	t.Run("filters by account and status", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT transaction_id, account_id, description, amount, operation_type, status, due_date").
			WithArgs("acc1", "PENDING", 50).
			WillReturnRows(sqlmock.NewRows([]string{
				"transaction_id", "account_id", "description", "amount", "operation_type", "status",
				"due_date", "installment", "has_installment", "recurrence", "version", "created_at", "updated_at",
			}).AddRow("tx1", "acc1", "Rent", 3334, "PAYMENT", "PENDING", now, nil, false, "", 1, now, now).
				AddRow("tx2", "acc1", "Fee", 500, "FEE", "PENDING", now, nil, false, "", 1, now, now))

		req := httptest.NewRequest("GET", "/transactions?accountId=acc1&status=PENDING", nil)
		w := httptest.NewRecorder()
		service.ListTransactions(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, float64(2), response["count"])
	})
}

func TestTransactionService_DeleteTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service, _ := newTestTransactionService(db)

	del := func(txID string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Delete("/transactions/{txId}", service.DeleteTransaction)

		req := httptest.NewRequest("DELETE", "/transactions/"+txID, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("unsettled transaction is deleted", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM transactions").
			WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
		mock.ExpectExec("DELETE FROM transactions").
			WithArgs("tx1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := del("tx1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("settled transaction must be reversed first", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM transactions").
			WithArgs("tx2").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PAID"))

		w := del("tx2")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transaction not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM transactions").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		w := del("ghost")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
