package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WithdrawLink is a server-issued redemption token that lets a bearer pull a
// bounded amount from the funding wallet, within usage and timing limits.
type WithdrawLink struct {
	ID              string     `json:"id"`
	WalletID        uuid.UUID  `json:"wallet"`
	Title           string     `json:"title"`
	MinWithdrawable int64      `json:"min_withdrawable"` // sats
	MaxWithdrawable int64      `json:"max_withdrawable"` // sats
	Uses            int        `json:"uses"`
	Used            int        `json:"used"`
	WaitTime        int        `json:"wait_time"` // seconds between redemptions
	IsUnique        bool       `json:"is_unique"`
	UniqueHash      string     `json:"unique_hash"`
	K1              string     `json:"k1"`
	CustomURL       *string    `json:"custom_url,omitempty"`
	WebhookURL      *string    `json:"webhook_url,omitempty"`
	WebhookHeaders  *string    `json:"webhook_headers,omitempty"`
	WebhookBody     *string    `json:"webhook_body,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
}

func (l *WithdrawLink) IsSpent() bool {
	return l.Used >= l.Uses
}

func (l *WithdrawLink) UsesLeft() int {
	if left := l.Uses - l.Used; left > 0 {
		return left
	}
	return 0
}

// VoucherHash derives the single-use sub-token for slot n of a unique link.
// Deterministic, so printed vouchers stay valid across restarts.
func (l *WithdrawLink) VoucherHash(n int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", l.ID, l.UniqueHash, n)))
	return hex.EncodeToString(sum[:16])
}

// HasVoucher reports whether hash matches any of the link's voucher slots.
func (l *WithdrawLink) HasVoucher(hash string) bool {
	for n := 0; n < l.Uses; n++ {
		if l.VoucherHash(n) == hash {
			return true
		}
	}
	return false
}

// NewLinkID returns a 22-char url-safe identifier.
func NewLinkID() string {
	return randomToken(22)
}

// NewSecret returns a url-safe secret for k1 / unique_hash values.
func NewSecret() string {
	return randomToken(32)
}

func randomToken(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	s := base64.RawURLEncoding.EncodeToString(b)
	return s[:length]
}
