package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lnurlw/backend/internal/auth"
	"github.com/lnurlw/backend/internal/models"
	"go.uber.org/zap"
)

// WebhookNotifier delivers best-effort notifications after a successful
// payout. Failures are logged and never retried; by the time a webhook fires
// the invoice is already paid, so the claimant must not see delivery errors.
type WebhookNotifier struct {
	httpClient *http.Client
	secret     string
	log        *zap.Logger
}

func NewWebhookNotifier(secret string, log *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{
			Timeout: 40 * time.Second,
		},
		secret: secret,
		log:    log,
	}
}

type webhookPayload struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
	LNURLW         string `json:"lnurlw"`
	Body           any    `json:"body"`
}

// Notify posts the configured body to the link's webhook URL. Meant to be run
// on its own goroutine; the passed values are copies so the caller can move on.
func (n *WebhookNotifier) Notify(link models.WithdrawLink, payment models.Payment) {
	if link.WebhookURL == nil || *link.WebhookURL == "" {
		return
	}

	payload := webhookPayload{
		PaymentHash:    payment.PaymentHash,
		PaymentRequest: payment.PaymentRequest,
		LNURLW:         link.ID,
	}
	if link.WebhookBody != nil && *link.WebhookBody != "" {
		var body any
		if err := json.Unmarshal([]byte(*link.WebhookBody), &body); err == nil {
			payload.Body = body
		} else {
			payload.Body = *link.WebhookBody
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("webhook payload marshal failed", zap.String("link_id", link.ID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *link.WebhookURL, strings.NewReader(string(data)))
	if err != nil {
		n.log.Error("webhook request build failed", zap.String("link_id", link.ID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	if link.WebhookHeaders != nil && *link.WebhookHeaders != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(*link.WebhookHeaders), &headers); err != nil {
			n.log.Warn("webhook headers are not a JSON object, skipping",
				zap.String("link_id", link.ID), zap.Error(err))
		} else {
			for k, v := range headers {
				req.Header.Set(k, v)
			}
		}
	}

	if n.secret != "" {
		token, err := auth.SignWebhookToken(n.secret, link.ID, payment.PaymentHash, 5*time.Minute)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("webhook delivery failed",
			zap.String("link_id", link.ID),
			zap.String("url", *link.WebhookURL),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn("webhook delivery rejected",
			zap.String("link_id", link.ID),
			zap.String("url", *link.WebhookURL),
			zap.Int("status", resp.StatusCode))
		return
	}

	n.log.Info("webhook delivered",
		zap.String("link_id", link.ID),
		zap.String("payment_hash", payment.PaymentHash))
}
