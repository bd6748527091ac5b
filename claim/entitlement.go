package claim

import (
	"context"
	"fmt"
)

// Entitlements manages how many units each claimant may withdraw per event.
// Grants overwrite the previous value rather than adding to it, and a grant
// of zero is rejected: entitlements only reach zero through claims.
type Entitlements struct {
	pool   TxBeginner
	repo   Repository
	gate   CapabilityGate
	pause  PauseGate
	outbox OutboxWriter
}

func NewEntitlements(pool TxBeginner, repo Repository, gate CapabilityGate, pause PauseGate, outbox OutboxWriter) *Entitlements {
	return &Entitlements{
		pool:   pool,
		repo:   repo,
		gate:   gate,
		pause:  pause,
		outbox: outbox,
	}
}

type SetParams struct {
	ActorID  string
	Kind     Kind
	EventID  int64
	Claimant string
	Amount   uint64
}

func (e *Entitlements) Set(ctx context.Context, params SetParams) error {
	if err := requireCapability(ctx, e.gate, CapManage, params.ActorID); err != nil {
		return err
	}
	if err := requireUnpaused(ctx, e.pause); err != nil {
		return err
	}
	if params.Claimant == "" {
		return fmt.Errorf("claim: missing claimant")
	}
	if params.Amount == 0 {
		return ErrZeroAmount
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("claim: begin set tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := e.repo.SetEntitlement(ctx, tx, params.Kind, params.EventID, params.Claimant, params.Amount); err != nil {
		return err
	}

	if e.outbox != nil {
		payload := map[string]any{
			"kind":     string(params.Kind),
			"event_id": params.EventID,
			"amount":   params.Amount,
		}
		if err := e.outbox.Enqueue(ctx, tx, OutboxTopicEntitlementUpdated, payload); err != nil {
			return fmt.Errorf("claim: enqueue entitlement updated: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("claim: commit set: %w", err)
	}
	return nil
}

type BatchSetParams struct {
	ActorID   string
	Kind      Kind
	EventID   int64
	Claimants []string
	Amounts   []uint64
}

// BatchSet grants entitlements to several claimants at once. The emitted
// fact carries the sum across the batch, not per-claimant amounts.
func (e *Entitlements) BatchSet(ctx context.Context, params BatchSetParams) error {
	if err := requireCapability(ctx, e.gate, CapManage, params.ActorID); err != nil {
		return err
	}
	if err := requireUnpaused(ctx, e.pause); err != nil {
		return err
	}
	if len(params.Claimants) == 0 {
		return ErrEmptyBatch
	}
	if len(params.Claimants) != len(params.Amounts) {
		return ErrLengthMismatch
	}

	var total uint64
	for _, amount := range params.Amounts {
		if amount == 0 {
			return ErrZeroAmount
		}
		total += amount
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("claim: begin batch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ev, err := e.repo.GetEventForUpdate(ctx, tx, params.Kind, params.EventID)
	if err != nil {
		return err
	}
	if !ev.Active {
		return ErrEventInactive
	}

	for i, claimant := range params.Claimants {
		if claimant == "" {
			return fmt.Errorf("claim: missing claimant at index %d", i)
		}
		if err := e.repo.SetEntitlement(ctx, tx, params.Kind, params.EventID, claimant, params.Amounts[i]); err != nil {
			return err
		}
	}

	if e.outbox != nil {
		payload := map[string]any{
			"kind":     string(params.Kind),
			"event_id": params.EventID,
			"amount":   total,
		}
		if err := e.outbox.Enqueue(ctx, tx, OutboxTopicEntitlementUpdated, payload); err != nil {
			return fmt.Errorf("claim: enqueue batch entitlement updated: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("claim: commit batch: %w", err)
	}
	return nil
}

// Get reads the remaining entitlement; absent rows read as zero.
func (e *Entitlements) Get(ctx context.Context, kind Kind, eventID int64, claimant string) (uint64, error) {
	return e.repo.GetEntitlement(ctx, kind, eventID, claimant)
}
