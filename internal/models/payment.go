package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusComplete = "complete"
	PaymentStatusFailed   = "failed"
)

// Payment is one payout ledger entry for a redeemed withdraw link.
type Payment struct {
	ID             uuid.UUID `json:"id"`
	LinkID         string    `json:"link_id"`
	WalletID       uuid.UUID `json:"wallet_id"`
	AmountMsat     int64     `json:"amount_msat"`
	PaymentRequest string    `json:"payment_request"`
	PaymentHash    string    `json:"payment_hash"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
