package claim

import (
	"context"
	"fmt"
)

// Registry creates, disables and enumerates claim events. Postgres is the
// source of truth; an in-memory active-set per kind serves enumeration and
// is rebuilt from the database via Load on startup.
type Registry struct {
	pool   TxBeginner
	repo   Repository
	gate   CapabilityGate
	pause  PauseGate
	outbox OutboxWriter

	active map[Kind]*activeSet
}

func NewRegistry(pool TxBeginner, repo Repository, gate CapabilityGate, pause PauseGate, outbox OutboxWriter) *Registry {
	return &Registry{
		pool:   pool,
		repo:   repo,
		gate:   gate,
		pause:  pause,
		outbox: outbox,
		active: map[Kind]*activeSet{
			KindSingle: {},
			KindPool:   {},
		},
	}
}

// Load rebuilds the in-memory active sets from persisted events.
func (r *Registry) Load(ctx context.Context) error {
	for kind, set := range r.active {
		ids, err := r.repo.ListActiveIDs(ctx, kind)
		if err != nil {
			return err
		}
		set.reset(ids)
	}
	return nil
}

type CreateSingleParams struct {
	ActorID   string
	Custodian string
	ItemID    int64
}

type CreatePoolParams struct {
	ActorID   string
	Custodian string
	ItemIDs   []int64
}

func (r *Registry) CreateSingle(ctx context.Context, params CreateSingleParams) (Event, error) {
	if params.Custodian == "" {
		return Event{}, fmt.Errorf("claim: missing custodian")
	}
	return r.create(ctx, params.ActorID, KindSingle, params.Custodian, []int64{params.ItemID})
}

func (r *Registry) CreatePool(ctx context.Context, params CreatePoolParams) (Event, error) {
	if params.Custodian == "" {
		return Event{}, fmt.Errorf("claim: missing custodian")
	}
	if len(params.ItemIDs) == 0 {
		return Event{}, ErrEmptyItemSet
	}
	return r.create(ctx, params.ActorID, KindPool, params.Custodian, params.ItemIDs)
}

func (r *Registry) create(ctx context.Context, actorID string, kind Kind, custodian string, itemIDs []int64) (Event, error) {
	if err := requireCapability(ctx, r.gate, CapManage, actorID); err != nil {
		return Event{}, err
	}
	if err := requireUnpaused(ctx, r.pause); err != nil {
		return Event{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("claim: begin create tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ev, err := r.repo.CreateEvent(ctx, tx, kind, custodian, itemIDs, actorID)
	if err != nil {
		return Event{}, err
	}

	if r.outbox != nil {
		payload := map[string]any{
			"kind":       string(kind),
			"event_id":   ev.ID,
			"created_by": actorID,
		}
		if err := r.outbox.Enqueue(ctx, tx, OutboxTopicEventCreated, payload); err != nil {
			return Event{}, fmt.Errorf("claim: enqueue event created: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("claim: commit create: %w", err)
	}

	r.active[kind].add(ev.ID)
	return ev, nil
}

type DisableParams struct {
	ActorID string
	Kind    Kind
	EventID int64
}

// Disable flips an event inactive. One-way: disabling an already-disabled
// or unknown id fails with ErrEventNotFound. The pause gate is not consulted
// here, so operators can stop a campaign while everything else is held.
func (r *Registry) Disable(ctx context.Context, params DisableParams) error {
	if err := requireCapability(ctx, r.gate, CapManage, params.ActorID); err != nil {
		return err
	}

	set, ok := r.active[params.Kind]
	if !ok {
		return fmt.Errorf("claim: unknown event kind %q", params.Kind)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("claim: begin disable tx: %w", err)
	}
	defer tx.Rollback(ctx)

	disabled, err := r.repo.DisableEvent(ctx, tx, params.Kind, params.EventID)
	if err != nil {
		return err
	}
	if !disabled {
		return ErrEventNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("claim: commit disable: %w", err)
	}

	set.remove(params.EventID)
	return nil
}

// ListActive returns the ids of active events for a kind, in no particular
// order.
func (r *Registry) ListActive(kind Kind) ([]int64, error) {
	set, ok := r.active[kind]
	if !ok {
		return nil, fmt.Errorf("claim: unknown event kind %q", kind)
	}
	return set.snapshot(), nil
}
