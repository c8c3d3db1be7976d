package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/finledger/backend/internal/models"
)

func TestSettlementService_CreatePacs008(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db)

	account := &models.Account{
		ID:       "acc1",
		Name:     "Savings",
		Currency: "USD",
	}
	transactions := []models.Transaction{
		{TransactionID: "tx1", AccountID: "acc1", Description: "Rent", Amount: 50000, Status: models.StatusPaid},
		{TransactionID: "tx2", AccountID: "acc1", Description: "Utilities", Amount: 2550, Status: models.StatusPaid},
	}

	t.Run("one entry per settled transaction", func(t *testing.T) {
		doc, err := service.CreatePacs008(account, transactions)
		assert.NoError(t, err)
		assert.NotNil(t, doc)

		assert.Equal(t, "2", string(doc.GrpHdr.NbOfTxs))
		assert.Len(t, doc.CdtTrfTxInf, 2)
		assert.Equal(t, "tx1", string(doc.CdtTrfTxInf[0].PmtId.EndToEndId))
		assert.Equal(t, 500.00, doc.CdtTrfTxInf[0].IntrBkSttlmAmt.Value)
		assert.Equal(t, 25.50, doc.CdtTrfTxInf[1].IntrBkSttlmAmt.Value)
		assert.Equal(t, 525.50, doc.GrpHdr.TtlIntrBkSttlmAmt.Value)
	})

	t.Run("empty export still forms a valid message", func(t *testing.T) {
		doc, err := service.CreatePacs008(account, nil)
		assert.NoError(t, err)
		assert.Equal(t, "0", string(doc.GrpHdr.NbOfTxs))
		assert.Empty(t, doc.CdtTrfTxInf)
	})

	t.Run("converts to XML", func(t *testing.T) {
		doc, err := service.CreatePacs008(account, transactions)
		assert.NoError(t, err)

		xmlData, err := service.ConvertToXML(doc)
		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(xmlData, "<?xml"))
		assert.Contains(t, xmlData, "tx1")
	})
}

func TestSettlementService_ExportSettled(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/settlements/export", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		service.ExportSettled(w, req)
		return w
	}

	t.Run("exports settled transactions", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, name, balance, currency, version, created_at, updated_at").
			WithArgs("acc1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "balance", "currency", "version", "created_at", "updated_at"}).
				AddRow("acc1", "Savings", 50000, "USD", 1, now, now))

		mock.ExpectQuery("SELECT transaction_id, account_id, description, amount, operation_type, status, due_date, created_at").
			WithArgs("acc1", "PAID", 100).
			WillReturnRows(sqlmock.NewRows([]string{
				"transaction_id", "account_id", "description", "amount", "operation_type", "status", "due_date", "created_at",
			}).AddRow("tx1", "acc1", "Rent", 50000, "PAYMENT", "PAID", now, now))

		w := post(`{"accountId":"acc1"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "pacs.008.001.08", response["messageType"])
		assert.Equal(t, float64(1), response["count"])
		assert.Contains(t, response["xml"], "tx1")
	})

	t.Run("ship forwards the message to settlement", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, name, balance, currency, version, created_at, updated_at").
			WithArgs("acc1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "balance", "currency", "version", "created_at", "updated_at"}).
				AddRow("acc1", "Savings", 50000, "USD", 1, now, now))

		mock.ExpectQuery("SELECT transaction_id, account_id, description, amount, operation_type, status, due_date, created_at").
			WithArgs("acc1", "PAID", 100).
			WillReturnRows(sqlmock.NewRows([]string{
				"transaction_id", "account_id", "description", "amount", "operation_type", "status", "due_date", "created_at",
			}).AddRow("tx1", "acc1", "Rent", 50000, "PAYMENT", "PAID", now, now))

		w := post(`{"accountId":"acc1","ship":true}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "shipped", response["status"])
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, balance, currency, version, created_at, updated_at").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "balance", "currency", "version", "created_at", "updated_at"}))

		w := post(`{"accountId":"ghost"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		w := post(`{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
