package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lnurlw/backend/internal/models"
)

// memoryStore mimics the conditional-update semantics of the postgres link
// repo: Admit commits voucher consumption and the used increment atomically.
type memoryStore struct {
	mu       sync.Mutex
	links    map[string]*models.WithdrawLink
	vouchers map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		links:    make(map[string]*models.WithdrawLink),
		vouchers: make(map[string]bool),
	}
}

func (s *memoryStore) put(l models.WithdrawLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[l.ID] = &l
}

func (s *memoryStore) Insert(_ context.Context, l *models.WithdrawLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.CreatedAt = time.Now()
	cp := *l
	s.links[l.ID] = &cp
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*models.WithdrawLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memoryStore) GetByK1(_ context.Context, k1 string) (*models.WithdrawLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.K1 == k1 {
			cp := *l
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memoryStore) GetByUniqueHash(_ context.Context, hash string) (*models.WithdrawLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.UniqueHash == hash {
			cp := *l
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memoryStore) List(_ context.Context, walletIDs []uuid.UUID, limit, offset int) ([]models.WithdrawLink, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inScope := func(id uuid.UUID) bool {
		for _, w := range walletIDs {
			if w == id {
				return true
			}
		}
		return false
	}

	var links []models.WithdrawLink
	for _, l := range s.links {
		if inScope(l.WalletID) {
			links = append(links, *l)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		li, lj := links[i].UsesLeft(), links[j].UsesLeft()
		if li != lj {
			return li > lj
		}
		return links[i].CreatedAt.Before(links[j].CreatedAt)
	})

	total := len(links)
	if limit > 0 {
		if offset > len(links) {
			offset = len(links)
		}
		end := offset + limit
		if end > len(links) {
			end = len(links)
		}
		links = links[offset:end]
	}
	return links, total, nil
}

func (s *memoryStore) Update(_ context.Context, l *models.WithdrawLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.links[l.ID]
	if !ok {
		return models.ErrNotFound
	}
	cp := *l
	cp.Uses = existing.Uses
	cp.Used = existing.Used
	cp.CreatedAt = existing.CreatedAt
	cp.LastUsedAt = existing.LastUsedAt
	s.links[l.ID] = &cp
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.links, id)
	return nil
}

func (s *memoryStore) IsVoucherRedeemed(_ context.Context, linkID, voucherHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vouchers[linkID+":"+voucherHash], nil
}

func (s *memoryStore) Admit(_ context.Context, linkID string, expectedUsed int, voucherHash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[linkID]
	if !ok {
		return models.ErrNotFound
	}
	if voucherHash != nil && s.vouchers[linkID+":"+*voucherHash] {
		return models.ErrAlreadyRedeemed
	}
	if l.Used != expectedUsed || l.Used >= l.Uses {
		return models.ErrConflict
	}
	if voucherHash != nil {
		s.vouchers[linkID+":"+*voucherHash] = true
	}
	l.Used++
	now := time.Now()
	l.LastUsedAt = &now
	return nil
}

// flakyStore injects a fixed number of Admit conflicts before delegating.
type flakyStore struct {
	*memoryStore
	mu        sync.Mutex
	conflicts int
}

func (s *flakyStore) Admit(ctx context.Context, linkID string, expectedUsed int, voucherHash *string) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return models.ErrConflict
	}
	s.mu.Unlock()
	return s.memoryStore.Admit(ctx, linkID, expectedUsed, voucherHash)
}

type memoryFunding struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
}

func newMemoryFunding() *memoryFunding {
	return &memoryFunding{balances: make(map[uuid.UUID]int64)}
}

func (f *memoryFunding) balance(id uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[id]
}

func (f *memoryFunding) Debit(_ context.Context, walletID uuid.UUID, amountMsat int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[walletID] < amountMsat {
		return models.ErrInsufficientFunds
	}
	f.balances[walletID] -= amountMsat
	return nil
}

func (f *memoryFunding) Credit(_ context.Context, walletID uuid.UUID, amountMsat int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[walletID] += amountMsat
	return nil
}

func (f *memoryFunding) WalletIDsByUser(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id := range f.balances {
		ids = append(ids, id)
	}
	return ids, nil
}

type memoryLedger struct {
	mu       sync.Mutex
	payments []*models.Payment
}

func (l *memoryLedger) Create(_ context.Context, p *models.Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	l.payments = append(l.payments, p)
	return nil
}

func (l *memoryLedger) MarkComplete(_ context.Context, p *models.Payment) error {
	p.Status = models.PaymentStatusComplete
	return nil
}

func (l *memoryLedger) MarkFailed(_ context.Context, p *models.Payment) error {
	p.Status = models.PaymentStatusFailed
	return nil
}

func (l *memoryLedger) ListByLink(_ context.Context, linkID string, limit, offset int) ([]models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Payment
	for i := len(l.payments) - 1; i >= 0; i-- {
		if l.payments[i].LinkID == linkID {
			out = append(out, *l.payments[i])
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// fakePayer decodes every invoice to a fixed amount and optionally fails the
// actual payment.
type fakePayer struct {
	amountMsat int64
	payErr     error
}

func (p *fakePayer) DecodeInvoice(_ context.Context, paymentRequest string) (*InvoiceInfo, error) {
	return &InvoiceInfo{
		AmountMsat:  p.amountMsat,
		PaymentHash: fmt.Sprintf("hash-%s", paymentRequest),
	}, nil
}

func (p *fakePayer) PayInvoice(_ context.Context, paymentRequest string, maxMsat int64) (*PayResult, error) {
	if p.payErr != nil {
		return nil, p.payErr
	}
	return &PayResult{PaymentHash: fmt.Sprintf("hash-%s", paymentRequest)}, nil
}

type recordingNotifier struct {
	calls chan models.WithdrawLink
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{calls: make(chan models.WithdrawLink, 16)}
}

func (n *recordingNotifier) Notify(link models.WithdrawLink, _ models.Payment) {
	n.calls <- link
}
