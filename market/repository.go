package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to the order book.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListOpen returns up to limit open orders, oldest first.
func (r *Repository) ListOpen(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, seller_id, item_id, quantity, unit_price, status, created_at
		FROM market_orders
		WHERE status = 'open'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("market: list open: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0, limit)
	for rows.Next() {
		var o Order
		var quantity, unitPrice int64
		if err := rows.Scan(&o.ID, &o.SellerID, &o.ItemID, &quantity, &unitPrice, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("market: scan order: %w", err)
		}
		o.Quantity = uint64(quantity)
		o.UnitPrice = uint64(unitPrice)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("market: iterate orders: %w", err)
	}
	return orders, nil
}

// Sales returns the cumulative units sold for an item; absent rows read as
// zero.
func (r *Repository) Sales(ctx context.Context, itemID int64) (uint64, error) {
	var sales int64
	err := r.pool.QueryRow(ctx, `SELECT sales FROM sale_counters WHERE item_id = $1`, itemID).Scan(&sales)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("market: sales counter: %w", err)
	}
	return uint64(sales), nil
}
