package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInsufficientFunds signals a debit larger than the account balance.
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

// Repository keeps the internal token balances. The token never leaves this
// table: there is no external transfer surface, only settlement moves
// executed by services inside their own transactions.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Balance reads an account balance; absent rows read as zero.
func (r *Repository) Balance(ctx context.Context, account string) (uint64, error) {
	var amount int64
	err := r.pool.QueryRow(ctx, `SELECT amount FROM token_balances WHERE account_id = $1`, account).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return uint64(amount), nil
}

// Credit adds tokens to an account, creating the row if needed.
func (r *Repository) Credit(ctx context.Context, tx pgx.Tx, account string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO token_balances (account_id, amount)
		VALUES ($1, $2)
		ON CONFLICT (account_id)
		DO UPDATE SET amount = token_balances.amount + EXCLUDED.amount, updated_at = get_tx_timestamp()
	`, account, int64(amount)); err != nil {
		return fmt.Errorf("ledger: credit %s: %w", account, err)
	}
	return nil
}

// Debit removes tokens from an account, failing rather than going negative.
func (r *Repository) Debit(ctx context.Context, tx pgx.Tx, account string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	tag, err := tx.Exec(ctx, `
		UPDATE token_balances
		SET amount = amount - $2, updated_at = get_tx_timestamp()
		WHERE account_id = $1 AND amount >= $2
	`, account, int64(amount))
	if err != nil {
		return fmt.Errorf("ledger: debit %s: %w", account, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}
