package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WalletRepository owns credit balances. Debits are atomic and never overdraw.
type WalletRepository interface {
	Debit(ctx context.Context, userID string, amount int64, description, descriptionAr string) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
}

type WalletRepo struct {
	db *sqlx.DB
}

func NewWalletRepo(db *sqlx.DB) *WalletRepo {
	return &WalletRepo{db: db}
}

// Debit subtracts amount in a single conditional update and records the transaction.
// It returns the balance after the debit.
func (r *WalletRepo) Debit(ctx context.Context, userID string, amount int64, description, descriptionAr string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.GetContext(ctx, &balance,
		`UPDATE wallets SET balance = balance - $2, updated_at = NOW()
         WHERE user_id=$1 AND balance >= $2
         RETURNING balance`, userID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("debit wallet: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (user_id, amount, balance_after, kind, description, description_ar)
         VALUES ($1, $2, $3, 'debit', $4, $5)`,
		userID, amount, balance, description, descriptionAr); err != nil {
		return 0, fmt.Errorf("record wallet transaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *WalletRepo) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

var _ WalletRepository = (*WalletRepo)(nil)
