package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/finledger/backend/internal/models"
)

// QRService issues short-lived QR payment references for pending
// transactions, so a payer can settle a bill by scanning instead of keying
// in a transaction ID.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewQRService(db *sql.DB, redisClient *redis.Client) *QRService {
	return &QRService{
		db:    db,
		redis: redisClient,
	}
}

// GeneratePaymentQR creates a QR reference for a PENDING transaction. The
// reference expires after five minutes.
func (s *QRService) GeneratePaymentQR(ctx context.Context, transactionID string) (string, string, error) {
	var accountID, status string
	var amount int64
	err := s.db.QueryRow(`
		SELECT account_id, amount, status FROM transactions WHERE transaction_id = $1
	`, transactionID).Scan(&accountID, &amount, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", models.NewDomainError(models.KindTransactionNotFound, "transaction %s not found", transactionID)
		}
		return "", "", err
	}

	if models.Status(status) != models.StatusPending {
		return "", "", models.NewDomainError(models.KindInvalidTransition,
			"transaction %s is %s; only PENDING transactions are payable", transactionID, status)
	}

	qrData := map[string]any{
		"transactionId": transactionID,
		"accountId":     accountID,
		"amount":        amount,
		"timestamp":     time.Now().Unix(),
		"nonce":         s.generateNonce(),
	}

	jsonData, err := json.Marshal(qrData)
	if err != nil {
		return "", "", err
	}

	reference := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("payqr:%s", reference)
	if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(reference, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return reference, qrImage, nil
}

// ResolvePaymentQR looks up a scanned reference and returns the payment
// details, or an error if the reference is unknown or expired.
func (s *QRService) ResolvePaymentQR(ctx context.Context, reference string) (map[string]any, error) {
	key := fmt.Sprintf("payqr:%s", reference)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired QR reference")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
