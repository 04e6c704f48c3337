package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lnurlw/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testLink(walletID uuid.UUID) models.WithdrawLink {
	return models.WithdrawLink{
		ID:              models.NewLinkID(),
		WalletID:        walletID,
		Title:           "coffee fund",
		MinWithdrawable: 10,
		MaxWithdrawable: 100,
		Uses:            5,
		UniqueHash:      models.NewSecret(),
		K1:              models.NewSecret(),
		CreatedAt:       time.Now(),
	}
}

func newTestRedemption(store LinkStore, funding FundingStore, payer InvoicePayer, notifier Notifier) (*RedemptionService, *memoryLedger) {
	ledger := &memoryLedger{}
	if notifier == nil {
		notifier = newRecordingNotifier()
	}
	svc := NewRedemptionService(store, funding, ledger, payer, notifier, nil, zap.NewNop())
	return svc, ledger
}

func TestRedeemHappyPath(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	link.Used = 3
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 1_000_000

	svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 50_000}, nil)

	payment, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(50_000), payment.AmountMsat)
	assert.Equal(t, models.PaymentStatusComplete, payment.Status)

	after, _ := store.GetByID(context.Background(), link.ID)
	assert.Equal(t, 4, after.Used)
	assert.NotNil(t, after.LastUsedAt)
	assert.Equal(t, int64(950_000), funding.balance(walletID))
}

func TestRedeemExhausted(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	link.Used = 5
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 1_000_000

	svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 50_000}, nil)

	_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
	assert.ErrorIs(t, err, models.ErrExhausted)

	after, _ := store.GetByID(context.Background(), link.ID)
	assert.Equal(t, 5, after.Used)
}

func TestRedeemUnknownK1(t *testing.T) {
	svc, _ := newTestRedemption(newMemoryStore(), newMemoryFunding(), &fakePayer{amountMsat: 50_000}, nil)

	_, err := svc.Redeem(context.Background(), "nope", "lnbc1", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedeemWaitTime(t *testing.T) {
	walletID := uuid.New()
	funding := newMemoryFunding()
	funding.balances[walletID] = 1_000_000

	tests := []struct {
		name        string
		lastUsedAgo time.Duration
		wantErr     error
	}{
		{"too soon", 1 * time.Second, models.ErrTooSoon},
		{"wait elapsed", 6 * time.Second, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			link := testLink(walletID)
			link.WaitTime = 5
			lastUsed := time.Now().Add(-tt.lastUsedAgo)
			link.LastUsedAt = &lastUsed
			link.Used = 1
			store.put(link)

			svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 50_000}, nil)
			_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRedeemNeverUsedIgnoresWaitTime(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	link.WaitTime = 3600
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 1_000_000

	svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 50_000}, nil)

	_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
	assert.NoError(t, err)
}

func TestRedeemVoucher(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	link.IsUnique = true
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 1_000_000

	svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 50_000}, nil)

	voucher := link.VoucherHash(0)

	_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", &voucher)
	assert.NoError(t, err)

	// same voucher again
	_, err = svc.Redeem(context.Background(), link.K1, "lnbc2", &voucher)
	assert.ErrorIs(t, err, models.ErrAlreadyRedeemed)

	// a different slot still works
	other := link.VoucherHash(1)
	_, err = svc.Redeem(context.Background(), link.K1, "lnbc3", &other)
	assert.NoError(t, err)

	// vouchers not derived from the link are unknown
	bogus := "deadbeef"
	_, err = svc.Redeem(context.Background(), link.K1, "lnbc4", &bogus)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// unique links refuse fungible redemption
	_, err = svc.Redeem(context.Background(), link.K1, "lnbc5", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedeemAmountOutOfRange(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 10_000_000

	// link bounds are 10..100 sats, invoice asks 200 sats
	svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 200_000}, nil)

	_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
	assert.ErrorIs(t, err, models.ErrAmountOutOfRange)
	assert.Equal(t, int64(10_000_000), funding.balance(walletID))
}

func TestRedeemInsufficientFunds(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 1_000 // 1 sat

	svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 50_000}, nil)

	_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
}

func TestPayoutFailureConsumesUse(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 1_000_000

	payer := &fakePayer{amountMsat: 50_000, payErr: errors.New("no route")}
	svc, ledger := newTestRedemption(store, funding, payer, nil)

	_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
	assert.ErrorIs(t, err, models.ErrPayoutFailed)

	// the use stays consumed, the balance comes back
	after, _ := store.GetByID(context.Background(), link.ID)
	assert.Equal(t, 1, after.Used)
	assert.Equal(t, int64(1_000_000), funding.balance(walletID))
	assert.Len(t, ledger.payments, 1)
	assert.Equal(t, models.PaymentStatusFailed, ledger.payments[0].Status)
}

func TestAdmitRetriesOnConflict(t *testing.T) {
	walletID := uuid.New()
	base := newMemoryStore()
	link := testLink(walletID)
	base.put(link)

	store := &flakyStore{memoryStore: base, conflicts: 2}

	svc, _ := newTestRedemption(store, newMemoryFunding(), &fakePayer{amountMsat: 50_000}, nil)

	ticket, err := svc.Admit(context.Background(), link.ID, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, ticket.Link.Used)
}

func TestAdmitSurfacesConflictAfterRetries(t *testing.T) {
	walletID := uuid.New()
	base := newMemoryStore()
	link := testLink(walletID)
	base.put(link)

	store := &flakyStore{memoryStore: base, conflicts: admitAttempts}

	svc, _ := newTestRedemption(store, newMemoryFunding(), &fakePayer{amountMsat: 50_000}, nil)

	_, err := svc.Admit(context.Background(), link.ID, nil)
	assert.ErrorIs(t, err, models.ErrConflict)
}

// Concurrent attempts against k remaining slots must produce exactly k
// admissions no matter how the goroutines interleave.
func TestConcurrentRedemptions(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	link.Uses = 5
	link.Used = 3
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 100_000_000

	svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 50_000}, nil)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrExhausted), errors.Is(err, models.ErrConflict):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 2, successes)
	assert.Equal(t, attempts-2, rejected)

	after, _ := store.GetByID(context.Background(), link.ID)
	assert.Equal(t, after.Uses, after.Used)
	assert.LessOrEqual(t, after.Used, after.Uses)
}

func TestRedeemFiresWebhook(t *testing.T) {
	walletID := uuid.New()
	store := newMemoryStore()
	link := testLink(walletID)
	url := "https://example.com/hook"
	headers := `{"X-Custom":"1"}`
	body := `{"gift":"card"}`
	link.WebhookURL = &url
	link.WebhookHeaders = &headers
	link.WebhookBody = &body
	store.put(link)

	funding := newMemoryFunding()
	funding.balances[walletID] = 1_000_000

	notifier := newRecordingNotifier()
	svc, _ := newTestRedemption(store, funding, &fakePayer{amountMsat: 50_000}, notifier)

	_, err := svc.Redeem(context.Background(), link.K1, "lnbc1", nil)
	assert.NoError(t, err)

	select {
	case notified := <-notifier.calls:
		assert.Equal(t, link.ID, notified.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not dispatched")
	}
}
