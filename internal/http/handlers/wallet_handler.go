package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lnurlw/backend/internal/http/dto"
	"github.com/lnurlw/backend/internal/middleware"
	"github.com/lnurlw/backend/internal/repositories"
	"go.uber.org/zap"
)

type WalletHandler struct {
	walletRepo *repositories.WalletRepo
	log        *zap.Logger
}

func NewWalletHandler(walletRepo *repositories.WalletRepo, log *zap.Logger) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo, log: log}
}

// CreateWallet handles POST /wallets. The response is the only time the
// capability keys are returned; store them client-side.
func (h *WalletHandler) CreateWallet(c *fiber.Ctx) error {
	var req dto.CreateWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "name is required"})
	}

	userID := uuid.New()
	if req.UserID != "" {
		parsed, err := uuid.Parse(req.UserID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user_id"})
		}
		userID = parsed
	}

	wallet, err := h.walletRepo.Create(c.Context(), userID, req.Name)
	if err != nil {
		h.log.Error("wallet create failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: wallet})
}

// GetWallet handles GET /wallet, returning the wallet the presented key
// authorizes, including the current balance.
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	wallet := middleware.GetWallet(c)
	fresh, err := h.walletRepo.GetByID(c.Context(), wallet.ID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "wallet not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fresh})
}

// Topup handles POST /wallet/topup (admin key): credits the funding balance
// after an out-of-band deposit settles.
func (h *WalletHandler) Topup(c *fiber.Ctx) error {
	var req dto.TopupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.AmountMsat <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "amount_msat must be positive"})
	}

	wallet := middleware.GetWallet(c)
	if err := h.walletRepo.Credit(c.Context(), wallet.ID, req.AmountMsat); err != nil {
		h.log.Error("wallet topup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	fresh, err := h.walletRepo.GetByID(c.Context(), wallet.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fresh})
}
