package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInsufficientHolding signals a transfer larger than the sender's
	// stock of that item.
	ErrInsufficientHolding = errors.New("inventory: insufficient holding")
	// ErrLengthMismatch signals batch item and amount slices of different
	// lengths.
	ErrLengthMismatch = errors.New("inventory: length mismatch")
)

// Repository is the custody store for item stock. Balance reads run against
// the pool; movements take the caller's transaction so claims and market
// settlements stay atomic with their bookkeeping.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Balance returns the holder's stock of one item; absent rows read as zero.
func (r *Repository) Balance(ctx context.Context, holder string, itemID int64) (uint64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `
		SELECT quantity FROM holdings WHERE holder_id = $1 AND item_id = $2
	`, holder, itemID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("inventory: balance: %w", err)
	}
	return uint64(qty), nil
}

// BalanceBatch reads the holder's stock for each item, preserving order.
// Within a claim transaction this is the inventory snapshot: recomputed
// fresh on every call, never cached.
func (r *Repository) BalanceBatch(ctx context.Context, tx pgx.Tx, holder string, itemIDs []int64) ([]uint64, error) {
	out := make([]uint64, len(itemIDs))
	for i, itemID := range itemIDs {
		var qty int64
		err := tx.QueryRow(ctx, `
			SELECT quantity FROM holdings WHERE holder_id = $1 AND item_id = $2
		`, holder, itemID).Scan(&qty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("inventory: balance of item %d: %w", itemID, err)
		}
		out[i] = uint64(qty)
	}
	return out, nil
}

// Transfer moves amount units of one item between holders. A zero amount is
// a no-op.
func (r *Repository) Transfer(ctx context.Context, tx pgx.Tx, from, to string, itemID int64, amount uint64) error {
	if amount == 0 {
		return nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE holdings
		SET quantity = quantity - $3, updated_at = get_tx_timestamp()
		WHERE holder_id = $1 AND item_id = $2 AND quantity >= $3
	`, from, itemID, int64(amount))
	if err != nil {
		return fmt.Errorf("inventory: debit %s item %d: %w", from, itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientHolding
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO holdings (holder_id, item_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (holder_id, item_id)
		DO UPDATE SET quantity = holdings.quantity + EXCLUDED.quantity, updated_at = get_tx_timestamp()
	`, to, itemID, int64(amount)); err != nil {
		return fmt.Errorf("inventory: credit %s item %d: %w", to, itemID, err)
	}
	return nil
}

// TransferBatch moves several items at once in slice order.
func (r *Repository) TransferBatch(ctx context.Context, tx pgx.Tx, from, to string, itemIDs []int64, amounts []uint64) error {
	if len(itemIDs) != len(amounts) {
		return ErrLengthMismatch
	}
	for i, itemID := range itemIDs {
		if err := r.Transfer(ctx, tx, from, to, itemID, amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

// Deposit adds stock to a holder, creating the row if needed. This is how
// event custodians are seeded.
func (r *Repository) Deposit(ctx context.Context, tx pgx.Tx, holder string, itemID int64, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO holdings (holder_id, item_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (holder_id, item_id)
		DO UPDATE SET quantity = holdings.quantity + EXCLUDED.quantity, updated_at = get_tx_timestamp()
	`, holder, itemID, int64(amount)); err != nil {
		return fmt.Errorf("inventory: deposit %s item %d: %w", holder, itemID, err)
	}
	return nil
}
