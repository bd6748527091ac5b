package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrOrderNotFound signals an unknown order id.
	ErrOrderNotFound = errors.New("market: order not found")
	// ErrOrderClosed signals a fill or cancel against a non-open order.
	ErrOrderClosed = errors.New("market: order closed")
	// ErrOwnOrder signals a seller trying to fill their own order.
	ErrOwnOrder = errors.New("market: cannot fill own order")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CustodyMover moves item stock inside the caller's transaction.
type CustodyMover interface {
	Transfer(ctx context.Context, tx pgx.Tx, from, to string, itemID int64, amount uint64) error
}

// TokenBook settles the internal token inside the caller's transaction.
type TokenBook interface {
	Debit(ctx context.Context, tx pgx.Tx, account string, amount uint64) error
	Credit(ctx context.Context, tx pgx.Tx, account string, amount uint64) error
}

// Service runs the order book: place escrows stock, fill settles tokens
// buyer to seller, moves the stock out of escrow and bumps the per-item
// sales counter, all in one transaction with the order row locked.
type Service struct {
	pool    TxBeginner
	custody CustodyMover
	tokens  TokenBook
	idGen   func() string
	now     func() time.Time
}

func NewService(pool TxBeginner, custody CustodyMover, tokens TokenBook) *Service {
	return &Service{
		pool:    pool,
		custody: custody,
		tokens:  tokens,
		idGen:   func() string { return uuid.NewString() },
		now:     time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

type PlaceParams struct {
	SellerID  string
	ItemID    int64
	Quantity  uint64
	UnitPrice uint64
}

func (s *Service) Place(ctx context.Context, params PlaceParams) (Order, error) {
	if params.SellerID == "" {
		return Order{}, fmt.Errorf("market: missing seller")
	}
	if params.Quantity == 0 {
		return Order{}, fmt.Errorf("market: zero quantity")
	}
	if params.UnitPrice == 0 {
		return Order{}, fmt.Errorf("market: zero price")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("market: begin place tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.custody.Transfer(ctx, tx, params.SellerID, EscrowAccount, params.ItemID, params.Quantity); err != nil {
		return Order{}, err
	}

	order := Order{
		ID:        s.idGen(),
		SellerID:  params.SellerID,
		ItemID:    params.ItemID,
		Quantity:  params.Quantity,
		UnitPrice: params.UnitPrice,
		Status:    StatusOpen,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO market_orders (id, seller_id, item_id, quantity, unit_price, status)
		VALUES ($1, $2, $3, $4, $5, 'open')
		RETURNING created_at
	`, order.ID, order.SellerID, order.ItemID, int64(order.Quantity), int64(order.UnitPrice)).Scan(&order.CreatedAt); err != nil {
		return Order{}, fmt.Errorf("market: insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("market: commit place: %w", err)
	}
	return order, nil
}

type FillParams struct {
	OrderID string
	BuyerID string
}

func (s *Service) Fill(ctx context.Context, params FillParams) (Order, error) {
	if params.BuyerID == "" {
		return Order{}, fmt.Errorf("market: missing buyer")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("market: begin fill tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var order Order
	var quantity, unitPrice int64
	err = tx.QueryRow(ctx, `
		SELECT id, seller_id, item_id, quantity, unit_price, status, created_at
		FROM market_orders
		WHERE id = $1
		FOR UPDATE
	`, params.OrderID).Scan(&order.ID, &order.SellerID, &order.ItemID, &quantity, &unitPrice, &order.Status, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("market: lock order: %w", err)
	}
	order.Quantity = uint64(quantity)
	order.UnitPrice = uint64(unitPrice)

	if order.Status != StatusOpen {
		return Order{}, ErrOrderClosed
	}
	if order.SellerID == params.BuyerID {
		return Order{}, ErrOwnOrder
	}

	total := order.Quantity * order.UnitPrice
	if err := s.tokens.Debit(ctx, tx, params.BuyerID, total); err != nil {
		return Order{}, err
	}
	if err := s.tokens.Credit(ctx, tx, order.SellerID, total); err != nil {
		return Order{}, err
	}
	if err := s.custody.Transfer(ctx, tx, EscrowAccount, params.BuyerID, order.ItemID, order.Quantity); err != nil {
		return Order{}, err
	}

	filledAt := s.now()
	if _, err := tx.Exec(ctx, `
		UPDATE market_orders
		SET status = 'filled', buyer_id = $2, filled_at = $3
		WHERE id = $1
	`, order.ID, params.BuyerID, filledAt); err != nil {
		return Order{}, fmt.Errorf("market: close order: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO sale_counters (item_id, sales)
		VALUES ($1, $2)
		ON CONFLICT (item_id)
		DO UPDATE SET sales = sale_counters.sales + EXCLUDED.sales
	`, order.ItemID, int64(order.Quantity)); err != nil {
		return Order{}, fmt.Errorf("market: bump sales counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("market: commit fill: %w", err)
	}

	order.Status = StatusFilled
	order.BuyerID = &params.BuyerID
	order.FilledAt = &filledAt
	return order, nil
}

// Cancel returns escrowed stock to the seller and closes the order. Only
// the seller may cancel.
func (s *Service) Cancel(ctx context.Context, orderID, sellerID string) (Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("market: begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var order Order
	var quantity, unitPrice int64
	err = tx.QueryRow(ctx, `
		SELECT id, seller_id, item_id, quantity, unit_price, status, created_at
		FROM market_orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&order.ID, &order.SellerID, &order.ItemID, &quantity, &unitPrice, &order.Status, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("market: lock order: %w", err)
	}
	order.Quantity = uint64(quantity)
	order.UnitPrice = uint64(unitPrice)

	if order.SellerID != sellerID {
		return Order{}, ErrOrderNotFound
	}
	if order.Status != StatusOpen {
		return Order{}, ErrOrderClosed
	}

	if err := s.custody.Transfer(ctx, tx, EscrowAccount, order.SellerID, order.ItemID, order.Quantity); err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE market_orders SET status = 'cancelled' WHERE id = $1`, order.ID); err != nil {
		return Order{}, fmt.Errorf("market: cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("market: commit cancel: %w", err)
	}

	order.Status = StatusCancelled
	return order, nil
}
