package market

import "time"

type OrderStatus string

const (
	StatusOpen      OrderStatus = "open"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
)

// Order is a sell offer: quantity units of one item at a per-unit price in
// internal ledger tokens. Stock is escrowed to the market account while the
// order is open.
type Order struct {
	ID        string
	SellerID  string
	ItemID    int64
	Quantity  uint64
	UnitPrice uint64
	Status    OrderStatus
	BuyerID   *string
	CreatedAt time.Time
	FilledAt  *time.Time
}

// EscrowAccount holds the stock of all open orders.
const EscrowAccount = "market.escrow"
