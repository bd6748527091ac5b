package inventory

import "time"

// Holding is one (holder, item) stock row. Quantities never go negative;
// every movement is clamp-checked inside its transaction.
type Holding struct {
	Holder    string
	ItemID    int64
	Quantity  uint64
	UpdatedAt time.Time
}
