package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lnurlw/backend/internal/events"
	"github.com/lnurlw/backend/internal/models"
	"go.uber.org/zap"
)

// admitAttempts bounds the optimistic retry loop before surfacing ErrConflict.
const admitAttempts = 3

// LinkStore is the persistence surface the engine runs against.
type LinkStore interface {
	Insert(ctx context.Context, l *models.WithdrawLink) error
	GetByID(ctx context.Context, id string) (*models.WithdrawLink, error)
	GetByK1(ctx context.Context, k1 string) (*models.WithdrawLink, error)
	GetByUniqueHash(ctx context.Context, hash string) (*models.WithdrawLink, error)
	List(ctx context.Context, walletIDs []uuid.UUID, limit, offset int) ([]models.WithdrawLink, int, error)
	Update(ctx context.Context, l *models.WithdrawLink) error
	Delete(ctx context.Context, id string) error
	IsVoucherRedeemed(ctx context.Context, linkID, voucherHash string) (bool, error)
	Admit(ctx context.Context, linkID string, expectedUsed int, voucherHash *string) error
}

// FundingStore moves value on the funding wallet balance.
type FundingStore interface {
	Debit(ctx context.Context, walletID uuid.UUID, amountMsat int64) error
	Credit(ctx context.Context, walletID uuid.UUID, amountMsat int64) error
}

// PaymentLedger records payout attempts and their outcomes.
type PaymentLedger interface {
	Create(ctx context.Context, p *models.Payment) error
	MarkComplete(ctx context.Context, p *models.Payment) error
	MarkFailed(ctx context.Context, p *models.Payment) error
}

// InvoicePayer decodes and settles bolt11 invoices.
type InvoicePayer interface {
	DecodeInvoice(ctx context.Context, paymentRequest string) (*InvoiceInfo, error)
	PayInvoice(ctx context.Context, paymentRequest string, maxMsat int64) (*PayResult, error)
}

// Notifier fires the post-payout webhook.
type Notifier interface {
	Notify(link models.WithdrawLink, payment models.Payment)
}

// Ticket is the admission result: the granted right to one payout within the
// link's bounds. Amounts are msat on the wire, the link stores sats.
type Ticket struct {
	Link    models.WithdrawLink
	MinMsat int64
	MaxMsat int64
}

type RedemptionService struct {
	links     LinkStore
	wallets   FundingStore
	payments  PaymentLedger
	lightning InvoicePayer
	notifier  Notifier
	publisher events.Publisher
	log       *zap.Logger
}

func NewRedemptionService(
	links LinkStore,
	wallets FundingStore,
	payments PaymentLedger,
	lightning InvoicePayer,
	notifier Notifier,
	publisher events.Publisher,
	log *zap.Logger,
) *RedemptionService {
	return &RedemptionService{
		links:     links,
		wallets:   wallets,
		payments:  payments,
		lightning: lightning,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// CheckRedeemable runs the admission checks without committing anything.
// The first LNURL step uses it so wallets see errors before producing an invoice.
func (s *RedemptionService) CheckRedeemable(ctx context.Context, link *models.WithdrawLink, voucherHash *string) error {
	if link.IsSpent() {
		return models.ErrExhausted
	}
	if err := checkWaitTime(link); err != nil {
		return err
	}
	if link.IsUnique {
		if voucherHash == nil || !link.HasVoucher(*voucherHash) {
			return models.ErrNotFound
		}
		redeemed, err := s.links.IsVoucherRedeemed(ctx, link.ID, *voucherHash)
		if err != nil {
			return err
		}
		if redeemed {
			return models.ErrAlreadyRedeemed
		}
	}
	return nil
}

// Admit decides a single redemption attempt and, when granted, commits the
// usage increment. The conditional update in the store makes the commit
// first-committer-wins; a lost race re-reads and retries a bounded number of
// times before surfacing ErrConflict.
func (s *RedemptionService) Admit(ctx context.Context, linkID string, voucherHash *string) (*Ticket, error) {
	for attempt := 0; attempt < admitAttempts; attempt++ {
		link, err := s.links.GetByID(ctx, linkID)
		if err != nil {
			return nil, err
		}
		if link.IsSpent() {
			return nil, models.ErrExhausted
		}
		if err := checkWaitTime(link); err != nil {
			return nil, err
		}

		var voucher *string
		if link.IsUnique {
			if voucherHash == nil || !link.HasVoucher(*voucherHash) {
				return nil, models.ErrNotFound
			}
			voucher = voucherHash
		}

		err = s.links.Admit(ctx, link.ID, link.Used, voucher)
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		link.Used++
		now := time.Now()
		link.LastUsedAt = &now
		return &Ticket{
			Link:    *link,
			MinMsat: link.MinWithdrawable * 1000,
			MaxMsat: link.MaxWithdrawable * 1000,
		}, nil
	}
	return nil, models.ErrConflict
}

// Redeem runs the full callback flow: admission, payout, then the
// fire-and-forget webhook. A payout failure after admission does NOT give the
// use back; this engine favors at-most-once payout over exactly-once, and a
// failed invoice terminally consumes its slot.
func (s *RedemptionService) Redeem(ctx context.Context, k1, paymentRequest string, voucherHash *string) (*models.Payment, error) {
	link, err := s.links.GetByK1(ctx, k1)
	if err != nil {
		return nil, err
	}

	ticket, err := s.Admit(ctx, link.ID, voucherHash)
	if err != nil {
		return nil, err
	}

	payment, err := s.Payout(ctx, ticket, paymentRequest)
	if err != nil {
		s.publishEvent(ctx, events.EventWithdrawFailed, map[string]any{
			"link_id": link.ID,
			"reason":  err.Error(),
		})
		return nil, err
	}

	go s.notifier.Notify(ticket.Link, *payment)

	s.publishEvent(ctx, events.EventWithdrawRedeemed, map[string]any{
		"link_id":      link.ID,
		"amount_msat":  payment.AmountMsat,
		"payment_hash": payment.PaymentHash,
		"uses_left":    ticket.Link.UsesLeft(),
	})

	s.log.Info("withdraw redeemed",
		zap.String("link_id", link.ID),
		zap.Int64("amount_msat", payment.AmountMsat),
		zap.Int("used", ticket.Link.Used),
		zap.Int("uses", ticket.Link.Uses))

	return payment, nil
}

// Payout executes the value transfer for a granted ticket. The admission
// commit already happened; nothing here holds a lock while the invoice is
// being paid.
func (s *RedemptionService) Payout(ctx context.Context, ticket *Ticket, paymentRequest string) (*models.Payment, error) {
	invoice, err := s.lightning.DecodeInvoice(ctx, paymentRequest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPayoutFailed, err)
	}
	if invoice.Expired {
		return nil, fmt.Errorf("%w: invoice expired", models.ErrPayoutFailed)
	}
	if invoice.AmountMsat < ticket.MinMsat || invoice.AmountMsat > ticket.MaxMsat {
		return nil, models.ErrAmountOutOfRange
	}

	if err := s.wallets.Debit(ctx, ticket.Link.WalletID, invoice.AmountMsat); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		LinkID:         ticket.Link.ID,
		WalletID:       ticket.Link.WalletID,
		AmountMsat:     invoice.AmountMsat,
		PaymentRequest: paymentRequest,
		PaymentHash:    invoice.PaymentHash,
		Status:         models.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		// funds never left, give the balance back
		if cerr := s.wallets.Credit(ctx, ticket.Link.WalletID, invoice.AmountMsat); cerr != nil {
			s.log.Error("balance restore failed", zap.String("link_id", ticket.Link.ID), zap.Error(cerr))
		}
		return nil, err
	}

	if _, err := s.lightning.PayInvoice(ctx, paymentRequest, ticket.MaxMsat); err != nil {
		_ = s.payments.MarkFailed(ctx, payment)
		// the use stays consumed, only the balance is restored
		if cerr := s.wallets.Credit(ctx, ticket.Link.WalletID, invoice.AmountMsat); cerr != nil {
			s.log.Error("balance restore failed", zap.String("link_id", ticket.Link.ID), zap.Error(cerr))
		}
		s.log.Warn("payout failed, use consumed",
			zap.String("link_id", ticket.Link.ID),
			zap.String("payment_hash", invoice.PaymentHash),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrPayoutFailed, err)
	}

	if err := s.payments.MarkComplete(ctx, payment); err != nil {
		s.log.Error("payment status update failed", zap.String("payment_hash", payment.PaymentHash), zap.Error(err))
	}
	return payment, nil
}

func checkWaitTime(link *models.WithdrawLink) error {
	if link.WaitTime <= 0 || link.LastUsedAt == nil {
		return nil
	}
	if time.Since(*link.LastUsedAt) < time.Duration(link.WaitTime)*time.Second {
		return models.ErrTooSoon
	}
	return nil
}

func (s *RedemptionService) publishEvent(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.StreamWithdraw, events.Event{
		Type:    eventType,
		Payload: payload,
	})
}
