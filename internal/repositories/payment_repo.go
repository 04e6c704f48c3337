package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lnurlw/backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func (r *PaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payments (link_id, wallet_id, amount_msat, payment_request, payment_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, p.LinkID, p.WalletID, p.AmountMsat, p.PaymentRequest, p.PaymentHash, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *PaymentRepo) MarkComplete(ctx context.Context, p *models.Payment) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $1 WHERE id = $2 AND status = $3
	`, models.PaymentStatusComplete, p.ID, models.PaymentStatusPending)
	if err == nil {
		p.Status = models.PaymentStatusComplete
	}
	return err
}

func (r *PaymentRepo) MarkFailed(ctx context.Context, p *models.Payment) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $1 WHERE id = $2 AND status = $3
	`, models.PaymentStatusFailed, p.ID, models.PaymentStatusPending)
	if err == nil {
		p.Status = models.PaymentStatusFailed
	}
	return err
}

// ListByLink returns the payout history of a link, newest first.
func (r *PaymentRepo) ListByLink(ctx context.Context, linkID string, limit, offset int) ([]models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, link_id, wallet_id, amount_msat, payment_request, payment_hash, status, created_at
		FROM payments WHERE link_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, linkID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.LinkID, &p.WalletID, &p.AmountMsat,
			&p.PaymentRequest, &p.PaymentHash, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
