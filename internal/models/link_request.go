package models

import (
	"encoding/json"
	"fmt"
)

// CreateLinkRequest carries the owner-supplied fields of a new withdraw link.
// Server-managed fields (id, wallet, used, k1, unique_hash, created_at) are
// never accepted from the caller.
type CreateLinkRequest struct {
	Title           string  `json:"title"`
	MinWithdrawable int64   `json:"min_withdrawable"`
	MaxWithdrawable int64   `json:"max_withdrawable"`
	Uses            int     `json:"uses"`
	WaitTime        int     `json:"wait_time"`
	IsUnique        bool    `json:"is_unique"`
	CustomURL       *string `json:"custom_url,omitempty"`
	WebhookURL      *string `json:"webhook_url,omitempty"`
	WebhookHeaders  *string `json:"webhook_headers,omitempty"`
	WebhookBody     *string `json:"webhook_body,omitempty"`

	// Simple marks the voucher-mode creation path: is_unique forced on,
	// wait_time forced to 1, min pinned to max.
	Simple bool `json:"simple"`
}

// Normalize applies the cross-field conditional defaults before validation.
func (r *CreateLinkRequest) Normalize() {
	if r.Simple {
		r.IsUnique = true
		r.WaitTime = 1
		r.MinWithdrawable = r.MaxWithdrawable
	}
}

func (r *CreateLinkRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidLink)
	}
	if r.MinWithdrawable < 1 {
		return fmt.Errorf("%w: min_withdrawable must be at least 1", ErrInvalidLink)
	}
	if r.MinWithdrawable > r.MaxWithdrawable {
		return fmt.Errorf("%w: min_withdrawable exceeds max_withdrawable", ErrInvalidLink)
	}
	if r.Uses < 1 {
		return fmt.Errorf("%w: uses must be at least 1", ErrInvalidLink)
	}
	if r.WaitTime < 0 {
		return fmt.Errorf("%w: wait_time must not be negative", ErrInvalidLink)
	}
	return validateWebhookFields(r.WebhookURL, r.WebhookHeaders, r.WebhookBody)
}

// UpdateLinkRequest is a partial patch; nil pointers leave fields untouched.
type UpdateLinkRequest struct {
	Title           *string `json:"title,omitempty"`
	MinWithdrawable *int64  `json:"min_withdrawable,omitempty"`
	MaxWithdrawable *int64  `json:"max_withdrawable,omitempty"`
	WaitTime        *int    `json:"wait_time,omitempty"`
	IsUnique        *bool   `json:"is_unique,omitempty"`
	CustomURL       *string `json:"custom_url,omitempty"`
	WebhookURL      *string `json:"webhook_url,omitempty"`
	WebhookHeaders  *string `json:"webhook_headers,omitempty"`
	WebhookBody     *string `json:"webhook_body,omitempty"`
	HasWebhook      *bool   `json:"has_webhook,omitempty"`
	Simple          bool    `json:"simple"`
}

// immutableFields may never appear in an update payload, even with the same
// value. uses is fixed at creation: voucher hashes are derived per slot, so
// shrinking it would strand printed vouchers and growing it would resurrect a
// spent link.
var immutableFields = []string{"id", "wallet", "uses", "used", "created_at", "k1", "unique_hash", "last_used_at"}

// ParseUpdateRequest decodes raw JSON into an UpdateLinkRequest, rejecting any
// attempt to patch a server-managed field.
func ParseUpdateRequest(body []byte) (*UpdateLinkRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed body", ErrInvalidLink)
	}
	for _, field := range immutableFields {
		if _, ok := raw[field]; ok {
			return nil, fmt.Errorf("%w: field %q cannot be updated", ErrInvalidLink, field)
		}
	}
	var req UpdateLinkRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: malformed body", ErrInvalidLink)
	}
	return &req, nil
}

// Apply merges the patch into link, returning the mutated copy ready for
// validation. Webhook fields are cleared together when has_webhook is false.
func (r *UpdateLinkRequest) Apply(link WithdrawLink) WithdrawLink {
	if r.Title != nil {
		link.Title = *r.Title
	}
	if r.MinWithdrawable != nil {
		link.MinWithdrawable = *r.MinWithdrawable
	}
	if r.MaxWithdrawable != nil {
		link.MaxWithdrawable = *r.MaxWithdrawable
	}
	if r.WaitTime != nil {
		link.WaitTime = *r.WaitTime
	}
	if r.IsUnique != nil {
		link.IsUnique = *r.IsUnique
	}
	if r.CustomURL != nil {
		link.CustomURL = r.CustomURL
	}
	if r.WebhookURL != nil {
		link.WebhookURL = r.WebhookURL
	}
	if r.WebhookHeaders != nil {
		link.WebhookHeaders = r.WebhookHeaders
	}
	if r.WebhookBody != nil {
		link.WebhookBody = r.WebhookBody
	}
	if r.HasWebhook != nil && !*r.HasWebhook {
		link.WebhookURL = nil
		link.WebhookHeaders = nil
		link.WebhookBody = nil
	}
	if r.Simple {
		link.IsUnique = true
		link.WaitTime = 1
		link.MinWithdrawable = link.MaxWithdrawable
	}
	return link
}

// ValidateLink re-checks the invariants on a merged link before persistence.
func ValidateLink(l *WithdrawLink) error {
	if l.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidLink)
	}
	if l.MinWithdrawable < 1 {
		return fmt.Errorf("%w: min_withdrawable must be at least 1", ErrInvalidLink)
	}
	if l.MinWithdrawable > l.MaxWithdrawable {
		return fmt.Errorf("%w: min_withdrawable exceeds max_withdrawable", ErrInvalidLink)
	}
	if l.Uses < 1 {
		return fmt.Errorf("%w: uses must be at least 1", ErrInvalidLink)
	}
	if l.Uses < l.Used {
		return fmt.Errorf("%w: uses cannot drop below used", ErrInvalidLink)
	}
	if l.WaitTime < 0 {
		return fmt.Errorf("%w: wait_time must not be negative", ErrInvalidLink)
	}
	return validateWebhookFields(l.WebhookURL, l.WebhookHeaders, l.WebhookBody)
}

// Webhook fields travel together: all set or all unset.
func validateWebhookFields(url, headers, body *string) error {
	set := 0
	for _, f := range []*string{url, headers, body} {
		if f != nil && *f != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("%w: webhook_url, webhook_headers and webhook_body must be set together", ErrInvalidLink)
	}
	return nil
}
