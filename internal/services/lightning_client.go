package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LightningClient talks to the node backend that decodes and pays bolt11
// invoices on behalf of the funding wallet.
type LightningClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewLightningClient(baseURL string, log *zap.Logger) *LightningClient {
	return &LightningClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type InvoiceInfo struct {
	AmountMsat  int64  `json:"amount_msat"`
	PaymentHash string `json:"payment_hash"`
	Description string `json:"description"`
	Expired     bool   `json:"expired"`
}

func (c *LightningClient) DecodeInvoice(ctx context.Context, paymentRequest string) (*InvoiceInfo, error) {
	body, _ := json.Marshal(map[string]string{"payment_request": paymentRequest})

	url := fmt.Sprintf("%s/internal/invoices/decode", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lightning backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lightning backend returned %d: %s", resp.StatusCode, string(b))
	}

	var info InvoiceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

type PayResult struct {
	PaymentHash string `json:"payment_hash"`
	Preimage    string `json:"preimage"`
	FeeMsat     int64  `json:"fee_msat"`
}

// PayInvoice settles the invoice, capped at maxMsat.
func (c *LightningClient) PayInvoice(ctx context.Context, paymentRequest string, maxMsat int64) (*PayResult, error) {
	body, _ := json.Marshal(map[string]any{
		"payment_request": paymentRequest,
		"max_msat":        maxMsat,
	})

	url := fmt.Sprintf("%s/internal/invoices/pay", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lightning backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lightning backend returned %d: %s", resp.StatusCode, string(b))
	}

	var result PayResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
