package actors

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"claimflow/claim"
	"claimflow/gate"
	"claimflow/inventory"
	"claimflow/outbox"
)

// Claimer hammers the claim path for one claimant. Domain refusals
// (nothing to claim, paused, drained stock) are expected under contention
// and simply retried; connection errors from chaos are retried too.
func Claimer(ctx context.Context, svc *claim.Service, kind claim.Kind, eventID int64, claimant string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.Claim(ctx, claim.ClaimParams{Kind: kind, EventID: eventID, Claimant: claimant})
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Granter keeps re-granting entitlements so claimers never run dry for long.
func Granter(ctx context.Context, ents *claim.Entitlements, managerID string, kind claim.Kind, eventID int64, claimants []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		claimant := claimants[rand.Intn(len(claimants))]
		_ = ents.Set(ctx, claim.SetParams{
			ActorID:  managerID,
			Kind:     kind,
			EventID:  eventID,
			Claimant: claimant,
			Amount:   uint64(1 + rand.Intn(50)),
		})
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Depositor keeps topping up the custodian's stock.
func Depositor(ctx context.Context, inv *inventory.Service, custodian string, itemIDs []int64, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		itemID := itemIDs[rand.Intn(len(itemIDs))]
		_ = inv.Deposit(ctx, custodian, itemID, uint64(1+rand.Intn(20)))
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// EventCycler creates short-lived pool events and disables them again,
// churning the registry's active sets while claims run elsewhere.
func EventCycler(ctx context.Context, reg *claim.Registry, managerID, custodian string, itemIDs []int64, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		ev, err := reg.CreatePool(ctx, claim.CreatePoolParams{
			ActorID:   managerID,
			Custodian: custodian,
			ItemIDs:   itemIDs,
		})
		if err == nil {
			time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
			_ = reg.Disable(ctx, claim.DisableParams{ActorID: managerID, Kind: claim.KindPool, EventID: ev.ID})
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// OutboxWorker drains pending facts with a sink that fails randomly,
// exercising the at-least-once retry path.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = outbox.DispatchPending(ctx, pool, 10, func(topic string, payload []byte) error {
			if rand.Intn(10) == 0 {
				return context.DeadlineExceeded
			}
			return nil
		})
		time.Sleep(100 * time.Millisecond)
	}
}

// PauseFlipper toggles the pause switch briefly so every mutating actor
// sees paused windows.
func PauseFlipper(ctx context.Context, sw *gate.PauseSwitch, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if rand.Intn(4) == 0 {
			_ = sw.SetPaused(ctx, true)
			time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
			_ = sw.SetPaused(ctx, false)
		}
		time.Sleep(500 * time.Millisecond)
	}
}
