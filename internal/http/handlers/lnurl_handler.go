package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/lnurlw/backend/internal/lnurl"
	"github.com/lnurlw/backend/internal/models"
	"github.com/lnurlw/backend/internal/services"
	"go.uber.org/zap"
)

// LnurlHandler serves the public two-step redemption flow. Per the LNURL
// convention every failure is answered as status 200 with
// {"status":"ERROR","reason":...} so wallets can display the reason.
type LnurlHandler struct {
	links      services.LinkStore
	redemption *services.RedemptionService
	baseURL    string
	log        *zap.Logger
}

func NewLnurlHandler(links services.LinkStore, redemption *services.RedemptionService, baseURL string, log *zap.Logger) *LnurlHandler {
	return &LnurlHandler{links: links, redemption: redemption, baseURL: baseURL, log: log}
}

func lnurlReason(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "Withdraw link does not exist."
	case errors.Is(err, models.ErrExhausted):
		return "Withdraw is spent."
	case errors.Is(err, models.ErrTooSoon):
		return "Wait time has not elapsed, try again later."
	case errors.Is(err, models.ErrAlreadyRedeemed):
		return "Withdraw is spent."
	case errors.Is(err, models.ErrConflict):
		return "Too many concurrent withdraws, try again."
	case errors.Is(err, models.ErrAmountOutOfRange):
		return "Amount is outside the withdrawable bounds."
	case errors.Is(err, models.ErrInsufficientFunds):
		return "Withdraw is not funded."
	default:
		return "Withdraw failed."
	}
}

// FirstStep handles GET /lnurl/:uniqueHash and, for unique links,
// GET /lnurl/:uniqueHash/:voucherHash. It answers the withdrawRequest
// challenge without consuming anything.
func (h *LnurlHandler) FirstStep(c *fiber.Ctx) error {
	link, err := h.links.GetByUniqueHash(c.Context(), c.Params("uniqueHash"))
	if err != nil {
		return c.JSON(lnurl.Error(lnurlReason(err)))
	}

	var voucher *string
	if v := c.Params("voucherHash"); v != "" {
		voucher = &v
	}

	if err := h.redemption.CheckRedeemable(c.Context(), link, voucher); err != nil {
		return c.JSON(lnurl.Error(lnurlReason(err)))
	}

	callback := fmt.Sprintf("%s/api/v1/lnurl/cb", h.baseURL)
	if voucher != nil {
		callback = fmt.Sprintf("%s?v=%s", callback, *voucher)
	}

	return c.JSON(lnurl.WithdrawResponse{
		Tag:                lnurl.TagWithdrawRequest,
		Callback:           callback,
		K1:                 link.K1,
		MinWithdrawable:    link.MinWithdrawable * 1000,
		MaxWithdrawable:    link.MaxWithdrawable * 1000,
		DefaultDescription: link.Title,
	})
}

// Callback handles GET /lnurl/cb?k1=&pr=[&v=]: the wallet presents its
// invoice, the engine admits and pays.
func (h *LnurlHandler) Callback(c *fiber.Ctx) error {
	k1 := c.Query("k1")
	pr := c.Query("pr")
	if k1 == "" || pr == "" {
		return c.JSON(lnurl.Error("k1 and pr are required."))
	}

	var voucher *string
	if v := c.Query("v"); v != "" {
		voucher = &v
	}

	payment, err := h.redemption.Redeem(c.Context(), k1, pr, voucher)
	if err != nil {
		h.log.Debug("redemption rejected", zap.String("k1", k1), zap.Error(err))
		return c.JSON(lnurl.Error(lnurlReason(err)))
	}

	resp := lnurl.OK()
	if link, lerr := h.links.GetByID(c.Context(), payment.LinkID); lerr == nil && link.CustomURL != nil {
		resp.URL = *link.CustomURL
	}
	return c.JSON(resp)
}
