package dto

type CreateWalletRequest struct {
	Name   string `json:"name"`
	UserID string `json:"user_id,omitempty"`
}

type TopupRequest struct {
	AmountMsat int64 `json:"amount_msat"`
}
