package services

import (
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/sirupsen/logrus"

	"github.com/finledger/backend/internal/audit"
	"github.com/finledger/backend/internal/logging"
	"github.com/finledger/backend/internal/models"
)

const settlementBIC = "FINLEDGR"

// SettlementService exports settled transactions as ISO 20022 pacs.008
// messages for external reconciliation systems.
type SettlementService struct {
	db        *sql.DB
	validator *ValidationHelper
	audit     *audit.Logger
	log       *logrus.Entry
}

func NewSettlementService(db *sql.DB) *SettlementService {
	return &SettlementService{
		db:        db,
		validator: NewValidationHelper(),
		audit:     audit.NewLogger(),
		log:       logging.For("settlement"),
	}
}

// ExportRequest selects which settled transactions to export. Ship also
// forwards the message to the settlement system instead of only returning it.
type ExportRequest struct {
	AccountID string `json:"accountId" validate:"required,max=64"`
	Limit     int    `json:"limit" validate:"omitempty,min=1,max=500"`
	Ship      bool   `json:"ship"`
}

// ExportSettled converts settled transactions to ISO 20022
// @Summary Export settled transactions
// @Description Convert an account's settled (PAID) transactions into a pacs.008 credit transfer message
// @Tags settlement
// @Accept json
// @Produce json
// @Param export body ExportRequest true "Export selection"
// @Success 200 {object} object{status=string,messageType=string,count=int,xml=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /settlements/export [post]
func (ss *SettlementService) ExportSettled(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := ss.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 100
	}

	account, transactions, err := ss.fetchSettled(req.AccountID, req.Limit)
	if err != nil {
		if err == sql.ErrNoRows {
			SendDomainError(w, models.NewDomainError(models.KindAccountNotFound, "account %s not found", req.AccountID))
		} else {
			ss.log.WithField(logging.FieldError, err).Error("failed to fetch settled transactions")
			SendErrorResponse(w, "Failed to fetch settled transactions", http.StatusInternalServerError, nil)
		}
		return
	}

	doc, err := ss.CreatePacs008(account, transactions)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := ss.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	status := "converted"
	if req.Ship {
		if err := ss.SendToSettlement(doc); err != nil {
			SendErrorResponse(w, "Failed to ship settlement message", http.StatusInternalServerError, nil)
			return
		}
		status = "shipped"
	}

	ss.audit.LogOperation(string(doc.GrpHdr.MsgId), account.ID, "SETTLEMENT_EXPORT",
		fmt.Sprintf("%s %d settled transactions", status, len(transactions)))

	json.NewEncoder(w).Encode(map[string]any{
		"status":      status,
		"messageType": "pacs.008.001.08",
		"count":       len(transactions),
		"xml":         xmlData,
	})
}

func (ss *SettlementService) fetchSettled(accountID string, limit int) (*models.Account, []models.Transaction, error) {
	var account models.Account
	err := ss.db.QueryRow(`
		SELECT id, name, balance, currency, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&account.ID, &account.Name, &account.Balance, &account.Currency,
		&account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}

	rows, err := ss.db.Query(`
        SELECT transaction_id, account_id, description, amount, operation_type, status, due_date, created_at
        FROM transactions
        WHERE account_id = $1 AND status = $2
        ORDER BY due_date ASC
        LIMIT $3
    `, accountID, string(models.StatusPaid), limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.TransactionID, &tx.AccountID, &tx.Description, &tx.Amount,
			&tx.OperationType, &tx.Status, &tx.DueDate, &tx.CreatedAt); err != nil {
			return nil, nil, err
		}
		transactions = append(transactions, tx)
	}

	return &account, transactions, rows.Err()
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message with
// one credit transfer entry per settled transaction.
func (ss *SettlementService) CreatePacs008(account *models.Account, transactions []models.Transaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()

	var total float64
	entries := make([]pacs_v08.CreditTransferTransaction39, 0, len(transactions))
	for i := range transactions {
		tx := &transactions[i]
		amount := float64(tx.Amount) / 100
		total += amount

		entries = append(entries, pacs_v08.CreditTransferTransaction39{
			PmtId: pacs_v08.PaymentIdentification7{
				InstrId:    &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
				EndToEndId: common.Max35Text(tx.TransactionID),
				TxId:       &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
			},
			IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(account.Currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			ChrgBr:        "SLEV",
			DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(settlementBIC)}[0],
				},
			},
			Dbtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(account.Name)}[0],
			},
			CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(settlementBIC)}[0],
				},
			},
			Cdtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(tx.Description)}[0],
			},
		})
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: common.Max15NumericText(strconv.Itoa(len(entries))),
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(account.Currency),
				Value: total,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: entries,
	}

	return doc, nil
}

// SendToSettlement ships a message to the external settlement system.
func (ss *SettlementService) SendToSettlement(doc interface{}) error {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}

	// TODO: wire the settlement system endpoint once it is provisioned
	ss.log.WithField(logging.FieldCount, len(xmlData)).Info("sending message to settlement")
	return nil
}

// ConvertToXML converts an ISO 20022 document to an XML string
func (ss *SettlementService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
