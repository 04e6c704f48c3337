package models

import "errors"

var (
	ErrNotFound          = errors.New("withdraw link not found")
	ErrForbidden         = errors.New("not your withdraw link")
	ErrExhausted         = errors.New("withdraw link is spent")
	ErrTooSoon           = errors.New("wait time has not elapsed")
	ErrAlreadyRedeemed   = errors.New("voucher already redeemed")
	ErrConflict          = errors.New("lost concurrent redemption race")
	ErrAmountOutOfRange  = errors.New("amount outside withdrawable bounds")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrPayoutFailed      = errors.New("payout failed")
	ErrInvalidLink       = errors.New("invalid link data")
)
