package dto

import "github.com/lnurlw/backend/internal/models"

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// PaginatedLinks mirrors the list view: the page plus the unpaginated total.
type PaginatedLinks struct {
	Data  []models.WithdrawLink `json:"data"`
	Total int                   `json:"total"`
}

// LnurlResponse carries the provisioning payload: the raw URL and its bech32
// form, ready for a QR renderer or NFC writer.
type LnurlResponse struct {
	URL   string `json:"url"`
	Lnurl string `json:"lnurl"`
}
