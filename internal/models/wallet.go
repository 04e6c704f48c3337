package models

import (
	"time"

	"github.com/google/uuid"
)

// Capability key classes scoped to a wallet.
const (
	KeyTypeAdmin   = "admin"
	KeyTypeInvoice = "invoice"
)

// Wallet is a funding wallet. Its capability keys authorize API calls:
// the invoice key grants read access, the admin key grants mutations.
type Wallet struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	AdminKey    string    `json:"adminkey,omitempty"`
	InvoiceKey  string    `json:"inkey,omitempty"`
	BalanceMsat int64     `json:"balance_msat"`
	CreatedAt   time.Time `json:"created_at"`
}
