package repositories

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lnurlw/backend/internal/models"
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) Create(ctx context.Context, userID uuid.UUID, name string) (*models.Wallet, error) {
	w := &models.Wallet{
		UserID:     userID,
		Name:       name,
		AdminKey:   generateKey(),
		InvoiceKey: generateKey(),
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO wallets (user_id, name, admin_key, invoice_key, balance_msat)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id, created_at
	`, w.UserID, w.Name, w.AdminKey, w.InvoiceKey).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// GetByKey resolves a capability key to its wallet, reporting which key class
// was presented.
func (r *WalletRepo) GetByKey(ctx context.Context, key string) (*models.Wallet, string, error) {
	var w models.Wallet
	var keyType string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, admin_key, invoice_key, balance_msat, created_at,
		       CASE WHEN admin_key = $1 THEN 'admin' ELSE 'invoice' END
		FROM wallets WHERE admin_key = $1 OR invoice_key = $1
	`, key).Scan(&w.ID, &w.UserID, &w.Name, &w.AdminKey, &w.InvoiceKey,
		&w.BalanceMsat, &w.CreatedAt, &keyType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", models.ErrForbidden
	}
	if err != nil {
		return nil, "", err
	}
	return &w, keyType, nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, admin_key, invoice_key, balance_msat, created_at
		FROM wallets WHERE id = $1
	`, id).Scan(&w.ID, &w.UserID, &w.Name, &w.AdminKey, &w.InvoiceKey,
		&w.BalanceMsat, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// WalletIDsByUser lists every wallet of the owning user, for all_wallets scoping.
func (r *WalletRepo) WalletIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM wallets WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Debit subtracts amountMsat from the wallet balance, refusing to overdraw.
func (r *WalletRepo) Debit(ctx context.Context, walletID uuid.UUID, amountMsat int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE wallets SET balance_msat = balance_msat - $1
		WHERE id = $2 AND balance_msat >= $1
	`, amountMsat, walletID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInsufficientFunds
	}
	return nil
}

// Credit adds amountMsat to the wallet balance (deposit settlement path).
func (r *WalletRepo) Credit(ctx context.Context, walletID uuid.UUID, amountMsat int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE wallets SET balance_msat = balance_msat + $1 WHERE id = $2`,
		amountMsat, walletID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func generateKey() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
