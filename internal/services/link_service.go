package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lnurlw/backend/internal/events"
	"github.com/lnurlw/backend/internal/models"
	"go.uber.org/zap"
)

// WalletDirectory resolves the wallet set a caller is authorized for.
type WalletDirectory interface {
	WalletIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// PaymentHistory reads the payout ledger of a link.
type PaymentHistory interface {
	ListByLink(ctx context.Context, linkID string, limit, offset int) ([]models.Payment, error)
}

// LinkService is the owner-facing CRUD surface. All writes go through the
// normalize-and-validate step before they reach the store.
type LinkService struct {
	links     LinkStore
	wallets   WalletDirectory
	history   PaymentHistory
	publisher events.Publisher
	log       *zap.Logger
}

func NewLinkService(links LinkStore, wallets WalletDirectory, history PaymentHistory, publisher events.Publisher, log *zap.Logger) *LinkService {
	return &LinkService{links: links, wallets: wallets, history: history, publisher: publisher, log: log}
}

func (s *LinkService) Create(ctx context.Context, wallet *models.Wallet, req models.CreateLinkRequest) (*models.WithdrawLink, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	link := &models.WithdrawLink{
		ID:              models.NewLinkID(),
		WalletID:        wallet.ID,
		Title:           req.Title,
		MinWithdrawable: req.MinWithdrawable,
		MaxWithdrawable: req.MaxWithdrawable,
		Uses:            req.Uses,
		WaitTime:        req.WaitTime,
		IsUnique:        req.IsUnique,
		UniqueHash:      models.NewSecret(),
		K1:              models.NewSecret(),
		CustomURL:       req.CustomURL,
		WebhookURL:      req.WebhookURL,
		WebhookHeaders:  req.WebhookHeaders,
		WebhookBody:     req.WebhookBody,
	}

	if err := s.links.Insert(ctx, link); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.StreamWithdraw, events.Event{
			Type:    events.EventLinkCreated,
			Payload: map[string]any{"link_id": link.ID, "uses": link.Uses},
		})
	}

	s.log.Info("withdraw link created",
		zap.String("link_id", link.ID),
		zap.String("wallet_id", wallet.ID.String()),
		zap.Int("uses", link.Uses))

	return link, nil
}

func (s *LinkService) Get(ctx context.Context, wallet *models.Wallet, id string) (*models.WithdrawLink, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.WalletID != wallet.ID {
		return nil, models.ErrForbidden
	}
	return link, nil
}

func (s *LinkService) List(ctx context.Context, wallet *models.Wallet, allWallets bool, limit, offset int) ([]models.WithdrawLink, int, error) {
	walletIDs, err := s.scopeWallets(ctx, wallet, allWallets)
	if err != nil {
		return nil, 0, err
	}
	return s.links.List(ctx, walletIDs, limit, offset)
}

// Update applies a partial patch. Server-managed fields were already rejected
// at parse time; the merged record is re-validated before persistence.
func (s *LinkService) Update(ctx context.Context, wallet *models.Wallet, id string, req *models.UpdateLinkRequest) (*models.WithdrawLink, error) {
	link, err := s.Get(ctx, wallet, id)
	if err != nil {
		return nil, err
	}

	updated := req.Apply(*link)
	if err := models.ValidateLink(&updated); err != nil {
		return nil, err
	}

	if err := s.links.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *LinkService) Delete(ctx context.Context, wallet *models.Wallet, id string) error {
	if _, err := s.Get(ctx, wallet, id); err != nil {
		return err
	}
	if err := s.links.Delete(ctx, id); err != nil {
		return err
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.StreamWithdraw, events.Event{
			Type:    events.EventLinkDeleted,
			Payload: map[string]any{"link_id": id},
		})
	}
	return nil
}

// Payments returns the payout history of an owned link, newest first.
func (s *LinkService) Payments(ctx context.Context, wallet *models.Wallet, id string, limit, offset int) ([]models.Payment, error) {
	if _, err := s.Get(ctx, wallet, id); err != nil {
		return nil, err
	}
	return s.history.ListByLink(ctx, id, limit, offset)
}

// ExportCSV renders the list view columns as a flat CSV document.
func (s *LinkService) ExportCSV(ctx context.Context, wallet *models.Wallet, allWallets bool) ([]byte, error) {
	links, _, err := s.List(ctx, wallet, allWallets, 0, 0)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"title", "created_at", "wait_time", "uses", "uses_left", "min", "max"})
	for _, l := range links {
		_ = w.Write([]string{
			l.Title,
			l.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(l.WaitTime),
			strconv.Itoa(l.Uses),
			strconv.Itoa(l.UsesLeft()),
			strconv.FormatInt(l.MinWithdrawable, 10),
			strconv.FormatInt(l.MaxWithdrawable, 10),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *LinkService) scopeWallets(ctx context.Context, wallet *models.Wallet, allWallets bool) ([]uuid.UUID, error) {
	if !allWallets {
		return []uuid.UUID{wallet.ID}, nil
	}
	ids, err := s.wallets.WalletIDsByUser(ctx, wallet.UserID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		ids = []uuid.UUID{wallet.ID}
	}
	return ids, nil
}
