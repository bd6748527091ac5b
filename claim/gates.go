package claim

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Capability names a permission checked before mutating entry points.
type Capability string

const (
	// CapManage covers event creation, disabling, entitlement grants and
	// pause toggling.
	CapManage Capability = "manage"
	// CapClaim covers claim execution.
	CapClaim Capability = "claim"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CapabilityGate answers whether a user holds a capability.
type CapabilityGate interface {
	Has(ctx context.Context, cap Capability, userID string) (bool, error)
}

// PauseGate reports whether mutating traffic is currently halted.
// Disabling an event stays available while paused.
type PauseGate interface {
	Paused(ctx context.Context) (bool, error)
}

// OutboxWriter records an emitted fact inside the caller's transaction.
type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// InventorySource is the asset-custody collaborator: fresh balances at claim
// time and the transfer executed after the entitlement commit.
type InventorySource interface {
	BalanceBatch(ctx context.Context, tx pgx.Tx, holder string, itemIDs []int64) ([]uint64, error)
	TransferBatch(ctx context.Context, tx pgx.Tx, from, to string, itemIDs []int64, amounts []uint64) error
}

func requireCapability(ctx context.Context, g CapabilityGate, cap Capability, userID string) error {
	ok, err := g.Has(ctx, cap, userID)
	if err != nil {
		return fmt.Errorf("claim: capability check: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func requireUnpaused(ctx context.Context, p PauseGate) error {
	paused, err := p.Paused(ctx)
	if err != nil {
		return fmt.Errorf("claim: pause check: %w", err)
	}
	if paused {
		return ErrPaused
	}
	return nil
}
