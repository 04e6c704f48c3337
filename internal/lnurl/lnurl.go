// Package lnurl implements the LNURL-withdraw wire shapes and the bech32
// encoding used when a link is rendered as a QR code or written to an NFC tag.
package lnurl

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const TagWithdrawRequest = "withdrawRequest"

// WithdrawResponse is the first-step challenge answer: the wallet learns the
// callback, the k1 secret and the payable bounds (msat) before producing an
// invoice.
type WithdrawResponse struct {
	Tag                string `json:"tag"`
	Callback           string `json:"callback"`
	K1                 string `json:"k1"`
	MinWithdrawable    int64  `json:"minWithdrawable"`
	MaxWithdrawable    int64  `json:"maxWithdrawable"`
	DefaultDescription string `json:"defaultDescription"`
}

type SuccessResponse struct {
	Status string `json:"status"`
	// URL is the optional receipt redirect configured on the link.
	URL string `json:"url,omitempty"`
}

type ErrorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func OK() SuccessResponse {
	return SuccessResponse{Status: "OK"}
}

func Error(reason string) ErrorResponse {
	return ErrorResponse{Status: "ERROR", Reason: reason}
}

// Encode bech32-encodes a URL with the lnurl human readable part, uppercased
// for QR alphanumeric mode as the standard recommends.
func Encode(url string) (string, error) {
	converted, err := bech32.ConvertBits([]byte(url), 8, 5, true)
	if err != nil {
		return "", err
	}
	encoded, err := bech32.Encode("lnurl", converted)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(encoded), nil
}

// Decode reverses Encode. Kept for round-trip verification of provisioned tags.
func Decode(encoded string) (string, error) {
	// LNURL strings routinely exceed the 90-char limit of on-chain addresses.
	_, data, err := bech32.DecodeNoLimit(strings.ToLower(encoded))
	if err != nil {
		return "", err
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	return string(converted), nil
}
