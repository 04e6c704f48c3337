package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/lnurlw/backend/internal/http/dto"
	"github.com/lnurlw/backend/internal/lnurl"
	"github.com/lnurlw/backend/internal/middleware"
	"github.com/lnurlw/backend/internal/models"
	"github.com/lnurlw/backend/internal/services"
	"go.uber.org/zap"
)

type LinkHandler struct {
	linkService *services.LinkService
	baseURL     string
	log         *zap.Logger
}

func NewLinkHandler(linkService *services.LinkService, baseURL string, log *zap.Logger) *LinkHandler {
	return &LinkHandler{linkService: linkService, baseURL: baseURL, log: log}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrInvalidLink):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ListLinks handles GET /links?all_wallets=&limit=&offset=
func (h *LinkHandler) ListLinks(c *fiber.Ctx) error {
	wallet := middleware.GetWallet(c)

	allWallets := c.Query("all_wallets") == "true"
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	links, total, err := h.linkService.List(c.Context(), wallet, allWallets, limit, offset)
	if err != nil {
		h.log.Error("list links failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.PaginatedLinks{Data: links, Total: total})
}

// ExportLinks handles GET /links/export, streaming the list view as CSV.
func (h *LinkHandler) ExportLinks(c *fiber.Ctx) error {
	wallet := middleware.GetWallet(c)
	allWallets := c.Query("all_wallets") == "true"

	data, err := h.linkService.ExportCSV(c.Context(), wallet, allWallets)
	if err != nil {
		h.log.Error("csv export failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="withdraw-links.csv"`)
	return c.Send(data)
}

func (h *LinkHandler) GetLink(c *fiber.Ctx) error {
	wallet := middleware.GetWallet(c)

	link, err := h.linkService.Get(c.Context(), wallet, c.Params("id"))
	if err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: link})
}

func (h *LinkHandler) CreateLink(c *fiber.Ctx) error {
	var req models.CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	wallet := middleware.GetWallet(c)
	link, err := h.linkService.Create(c.Context(), wallet, req)
	if err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: link})
}

func (h *LinkHandler) UpdateLink(c *fiber.Ctx) error {
	req, err := models.ParseUpdateRequest(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	wallet := middleware.GetWallet(c)
	link, err := h.linkService.Update(c.Context(), wallet, c.Params("id"), req)
	if err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: link})
}

func (h *LinkHandler) DeleteLink(c *fiber.Ctx) error {
	wallet := middleware.GetWallet(c)

	if err := h.linkService.Delete(c.Context(), wallet, c.Params("id")); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ListPayments handles GET /links/:id/payments?limit=&offset=, the payout
// ledger of one link, newest first.
func (h *LinkHandler) ListPayments(c *fiber.Ctx) error {
	wallet := middleware.GetWallet(c)
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	payments, err := h.linkService.Payments(c.Context(), wallet, c.Params("id"), limit, offset)
	if err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: payments})
}

// GetLnurl handles GET /links/:id/lnurl?slot=. It returns the public
// redemption URI and its bech32 encoding for QR rendering or NFC writing.
// Unique links address one voucher slot per encoded string.
func (h *LinkHandler) GetLnurl(c *fiber.Ctx) error {
	wallet := middleware.GetWallet(c)

	link, err := h.linkService.Get(c.Context(), wallet, c.Params("id"))
	if err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	url := fmt.Sprintf("%s/api/v1/lnurl/%s", h.baseURL, link.UniqueHash)
	if link.IsUnique {
		slot, _ := strconv.Atoi(c.Query("slot", "0"))
		if slot < 0 || slot >= link.Uses {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "slot out of range"})
		}
		url = fmt.Sprintf("%s/%s", url, link.VoucherHash(slot))
	}

	encoded, err := lnurl.Encode(url)
	if err != nil {
		h.log.Error("lnurl encode failed", zap.String("link_id", link.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.LnurlResponse{URL: url, Lnurl: encoded}})
}
