package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lnurlw/backend/internal/models"
)

type LinkRepo struct {
	pool *pgxpool.Pool
}

func NewLinkRepo(pool *pgxpool.Pool) *LinkRepo {
	return &LinkRepo{pool: pool}
}

const linkColumns = `
	id, wallet_id, title, min_withdrawable, max_withdrawable, uses, used,
	wait_time, is_unique, unique_hash, k1, custom_url,
	webhook_url, webhook_headers, webhook_body, created_at, last_used_at
`

func scanLink(row pgx.Row) (*models.WithdrawLink, error) {
	var l models.WithdrawLink
	err := row.Scan(
		&l.ID, &l.WalletID, &l.Title, &l.MinWithdrawable, &l.MaxWithdrawable,
		&l.Uses, &l.Used, &l.WaitTime, &l.IsUnique, &l.UniqueHash, &l.K1,
		&l.CustomURL, &l.WebhookURL, &l.WebhookHeaders, &l.WebhookBody,
		&l.CreatedAt, &l.LastUsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LinkRepo) Insert(ctx context.Context, l *models.WithdrawLink) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO withdraw_links (
			id, wallet_id, title, min_withdrawable, max_withdrawable, uses, used,
			wait_time, is_unique, unique_hash, k1, custom_url,
			webhook_url, webhook_headers, webhook_body
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`, l.ID, l.WalletID, l.Title, l.MinWithdrawable, l.MaxWithdrawable, l.Uses,
		l.WaitTime, l.IsUnique, l.UniqueHash, l.K1, l.CustomURL,
		l.WebhookURL, l.WebhookHeaders, l.WebhookBody,
	).Scan(&l.CreatedAt)
}

func (r *LinkRepo) GetByID(ctx context.Context, id string) (*models.WithdrawLink, error) {
	return scanLink(r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM withdraw_links WHERE id = $1`, id))
}

func (r *LinkRepo) GetByK1(ctx context.Context, k1 string) (*models.WithdrawLink, error) {
	return scanLink(r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM withdraw_links WHERE k1 = $1`, k1))
}

func (r *LinkRepo) GetByUniqueHash(ctx context.Context, hash string) (*models.WithdrawLink, error) {
	return scanLink(r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM withdraw_links WHERE unique_hash = $1`, hash))
}

// List returns the wallet-scoped page plus the unpaginated total, ordered by
// remaining uses descending, creation order breaking ties.
func (r *LinkRepo) List(ctx context.Context, walletIDs []uuid.UUID, limit, offset int) ([]models.WithdrawLink, int, error) {
	query := `SELECT ` + linkColumns + `
		FROM withdraw_links WHERE wallet_id = ANY($1)
		ORDER BY (uses - used) DESC, created_at ASC`
	args := []any{walletIDs}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	links := []models.WithdrawLink{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, 0, err
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM withdraw_links WHERE wallet_id = ANY($1)`, walletIDs,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

// Update persists the owner-editable fields. uses, used, id, wallet_id and
// created_at are deliberately not part of the statement.
func (r *LinkRepo) Update(ctx context.Context, l *models.WithdrawLink) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE withdraw_links SET
			title = $1, min_withdrawable = $2, max_withdrawable = $3,
			wait_time = $4, is_unique = $5, custom_url = $6,
			webhook_url = $7, webhook_headers = $8, webhook_body = $9
		WHERE id = $10
	`, l.Title, l.MinWithdrawable, l.MaxWithdrawable,
		l.WaitTime, l.IsUnique, l.CustomURL,
		l.WebhookURL, l.WebhookHeaders, l.WebhookBody, l.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *LinkRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM withdraw_links WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Admit performs the atomic admission commit: consume the voucher (when the
// link is unique) and increment used, guarded by the value the caller read.
// Losing the guard means another attempt committed first.
func (r *LinkRepo) Admit(ctx context.Context, linkID string, expectedUsed int, voucherHash *string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if voucherHash != nil {
		tag, err := tx.Exec(ctx, `
			INSERT INTO redeemed_vouchers (link_id, voucher_hash)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, linkID, *voucherHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return models.ErrAlreadyRedeemed
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE withdraw_links
		SET used = used + 1, last_used_at = now()
		WHERE id = $1 AND used = $2 AND used < uses
	`, linkID, expectedUsed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}

	return tx.Commit(ctx)
}

// IsVoucherRedeemed reports whether a voucher sub-token was consumed before.
func (r *LinkRepo) IsVoucherRedeemed(ctx context.Context, linkID, voucherHash string) (bool, error) {
	var redeemed bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM redeemed_vouchers WHERE link_id = $1 AND voucher_hash = $2)
	`, linkID, voucherHash).Scan(&redeemed)
	return redeemed, err
}
