package claim

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"
)

// Service executes claims: validate, snapshot, allocate, commit, transfer,
// report. The whole invocation runs in one transaction with the event and
// entitlement rows locked, so no two claims observe the same pre-decrement
// state. The entitlement decrement is still written before the custody
// transfer is requested; keep that order when porting this anywhere the
// transfer leaves the transaction.
type Service struct {
	pool      TxBeginner
	repo      Repository
	inventory InventorySource
	gate      CapabilityGate
	pause     PauseGate
	outbox    OutboxWriter
	seed      func() uint64
	now       func() time.Time
}

func NewService(pool TxBeginner, repo Repository, inventory InventorySource, gate CapabilityGate, pause PauseGate, outbox OutboxWriter) *Service {
	return &Service{
		pool:      pool,
		repo:      repo,
		inventory: inventory,
		gate:      gate,
		pause:     pause,
		outbox:    outbox,
		seed:      func() uint64 { return uint64(time.Now().UnixNano()) },
		now:       time.Now,
	}
}

// WithSeed replaces the allocation seed source. The default is time-derived
// and explicitly not a fairness or security mechanism; tests inject fixed
// values for determinism.
func (s *Service) WithSeed(seed func() uint64) *Service {
	s.seed = seed
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type ClaimParams struct {
	Kind     Kind
	EventID  int64
	Claimant string
}

// Claim withdraws as many units as the claimant's entitlement and the
// event's current stock allow. It returns how many units actually moved;
// zero is a valid outcome for pool events whose stock has run dry.
func (s *Service) Claim(ctx context.Context, params ClaimParams) (ClaimResult, error) {
	if params.Claimant == "" {
		return ClaimResult{}, fmt.Errorf("claim: missing claimant")
	}
	if err := requireCapability(ctx, s.gate, CapClaim, params.Claimant); err != nil {
		return ClaimResult{}, err
	}
	if err := requireUnpaused(ctx, s.pause); err != nil {
		return ClaimResult{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim: begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ev, err := s.repo.GetEventForUpdate(ctx, tx, params.Kind, params.EventID)
	if err != nil {
		return ClaimResult{}, err
	}
	if !ev.Active {
		return ClaimResult{}, ErrEventInactive
	}

	entitled, err := s.repo.GetEntitlementForUpdate(ctx, tx, params.Kind, params.EventID, params.Claimant)
	if err != nil {
		return ClaimResult{}, err
	}
	if entitled == 0 {
		return ClaimResult{}, ErrNothingToClaim
	}

	available, err := s.inventory.BalanceBatch(ctx, tx, ev.Custodian, ev.ItemIDs)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim: snapshot inventory: %w", err)
	}
	if len(available) != len(ev.ItemIDs) {
		return ClaimResult{}, fmt.Errorf("claim: snapshot length %d, want %d", len(available), len(ev.ItemIDs))
	}

	// Single-item events refuse to run dry quietly; pool events fall through
	// to a zero allocation instead.
	if ev.Kind == KindSingle && sum(available) == 0 {
		return ClaimResult{}, ErrInventoryEmpty
	}

	amounts := Allocate(available, entitled, mixSeed(s.seed(), hashClaimant(params.Claimant)))
	total := sum(amounts)

	remaining := entitled
	if total > 0 {
		remaining, err = s.repo.DecrementEntitlement(ctx, tx, params.Kind, params.EventID, params.Claimant, total)
		if err != nil {
			return ClaimResult{}, err
		}
		if err := s.inventory.TransferBatch(ctx, tx, ev.Custodian, params.Claimant, ev.ItemIDs, amounts); err != nil {
			return ClaimResult{}, fmt.Errorf("claim: transfer: %w", err)
		}
	}

	if s.outbox != nil {
		payload := map[string]any{
			"kind":     string(params.Kind),
			"event_id": params.EventID,
			"claimant": params.Claimant,
			"units":    total,
		}
		if err := s.outbox.Enqueue(ctx, tx, OutboxTopicClaimExecuted, payload); err != nil {
			return ClaimResult{}, fmt.Errorf("claim: enqueue claim executed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ClaimResult{}, fmt.Errorf("claim: commit claim: %w", err)
	}

	return ClaimResult{
		Kind:       params.Kind,
		EventID:    params.EventID,
		Claimant:   params.Claimant,
		ItemIDs:    ev.ItemIDs,
		Amounts:    amounts,
		Total:      total,
		Remaining:  remaining,
		ExecutedAt: s.now(),
	}, nil
}

func hashClaimant(claimant string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(claimant))
	return h.Sum64()
}
