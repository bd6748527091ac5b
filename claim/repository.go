package claim

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the persistence required by the registry, the
// entitlement ledger and the claim orchestrator.
type Repository interface {
	CreateEvent(ctx context.Context, tx pgx.Tx, kind Kind, custodian string, itemIDs []int64, createdBy string) (Event, error)
	GetEventForUpdate(ctx context.Context, tx pgx.Tx, kind Kind, id int64) (Event, error)
	DisableEvent(ctx context.Context, tx pgx.Tx, kind Kind, id int64) (bool, error)
	ListActiveIDs(ctx context.Context, kind Kind) ([]int64, error)
	GetEntitlement(ctx context.Context, kind Kind, eventID int64, claimant string) (uint64, error)
	GetEntitlementForUpdate(ctx context.Context, tx pgx.Tx, kind Kind, eventID int64, claimant string) (uint64, error)
	SetEntitlement(ctx context.Context, tx pgx.Tx, kind Kind, eventID int64, claimant string, amount uint64) error
	DecrementEntitlement(ctx context.Context, tx pgx.Tx, kind Kind, eventID int64, claimant string, by uint64) (uint64, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func sequenceFor(kind Kind) (string, error) {
	switch kind {
	case KindSingle:
		return "single_event_ids", nil
	case KindPool:
		return "pool_event_ids", nil
	default:
		return "", fmt.Errorf("claim: unknown event kind %q", kind)
	}
}

func (r *PGRepository) CreateEvent(ctx context.Context, tx pgx.Tx, kind Kind, custodian string, itemIDs []int64, createdBy string) (Event, error) {
	seq, err := sequenceFor(kind)
	if err != nil {
		return Event{}, err
	}

	query := fmt.Sprintf(`
		INSERT INTO claim_events (kind, id, active, custodian, item_ids, created_by)
		VALUES ($1, nextval('%s'), TRUE, $2, $3, $4)
		RETURNING id, created_at
	`, seq)

	ev := Event{
		Kind:      kind,
		Active:    true,
		Custodian: custodian,
		ItemIDs:   itemIDs,
		CreatedBy: createdBy,
	}
	if err := tx.QueryRow(ctx, query, kind, custodian, itemIDs, createdBy).Scan(&ev.ID, &ev.CreatedAt); err != nil {
		return Event{}, fmt.Errorf("claim: insert event: %w", err)
	}
	return ev, nil
}

func (r *PGRepository) GetEventForUpdate(ctx context.Context, tx pgx.Tx, kind Kind, id int64) (Event, error) {
	const query = `
		SELECT kind, id, active, custodian, item_ids, created_by, created_at
		FROM claim_events
		WHERE kind = $1 AND id = $2
		FOR UPDATE
	`

	var ev Event
	err := tx.QueryRow(ctx, query, kind, id).Scan(
		&ev.Kind,
		&ev.ID,
		&ev.Active,
		&ev.Custodian,
		&ev.ItemIDs,
		&ev.CreatedBy,
		&ev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("claim: get event for update: %w", err)
	}
	return ev, nil
}

// DisableEvent flips an active event to inactive. It reports false when the
// event does not exist or is already disabled, so disabling twice surfaces
// as a rejection at the service layer.
func (r *PGRepository) DisableEvent(ctx context.Context, tx pgx.Tx, kind Kind, id int64) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE claim_events
		SET active = FALSE
		WHERE kind = $1 AND id = $2 AND active
	`, kind, id)
	if err != nil {
		return false, fmt.Errorf("claim: disable event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGRepository) ListActiveIDs(ctx context.Context, kind Kind) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM claim_events WHERE kind = $1 AND active`, kind)
	if err != nil {
		return nil, fmt.Errorf("claim: list active events: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 8)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("claim: scan active event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate active events: %w", err)
	}
	return ids, nil
}

func (r *PGRepository) GetEntitlement(ctx context.Context, kind Kind, eventID int64, claimant string) (uint64, error) {
	var remaining int64
	err := r.pool.QueryRow(ctx, `
		SELECT remaining FROM claim_entitlements
		WHERE kind = $1 AND event_id = $2 AND claimant_id = $3
	`, kind, eventID, claimant).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("claim: get entitlement: %w", err)
	}
	return uint64(remaining), nil
}

func (r *PGRepository) GetEntitlementForUpdate(ctx context.Context, tx pgx.Tx, kind Kind, eventID int64, claimant string) (uint64, error) {
	var remaining int64
	err := tx.QueryRow(ctx, `
		SELECT remaining FROM claim_entitlements
		WHERE kind = $1 AND event_id = $2 AND claimant_id = $3
		FOR UPDATE
	`, kind, eventID, claimant).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("claim: lock entitlement: %w", err)
	}
	return uint64(remaining), nil
}

// SetEntitlement overwrites the remaining units for (event, claimant).
// Overwrite, not add: repeated grants do not accumulate.
func (r *PGRepository) SetEntitlement(ctx context.Context, tx pgx.Tx, kind Kind, eventID int64, claimant string, amount uint64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO claim_entitlements (kind, event_id, claimant_id, remaining)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, event_id, claimant_id)
		DO UPDATE SET remaining = EXCLUDED.remaining, updated_at = get_tx_timestamp()
	`, kind, eventID, claimant, int64(amount))
	if err != nil {
		return fmt.Errorf("claim: set entitlement: %w", err)
	}
	return nil
}

func (r *PGRepository) DecrementEntitlement(ctx context.Context, tx pgx.Tx, kind Kind, eventID int64, claimant string, by uint64) (uint64, error) {
	var remaining int64
	err := tx.QueryRow(ctx, `
		UPDATE claim_entitlements
		SET remaining = remaining - $4, updated_at = get_tx_timestamp()
		WHERE kind = $1 AND event_id = $2 AND claimant_id = $3 AND remaining >= $4
		RETURNING remaining
	`, kind, eventID, claimant, int64(by)).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("claim: decrement exceeds entitlement")
		}
		return 0, fmt.Errorf("claim: decrement entitlement: %w", err)
	}
	return uint64(remaining), nil
}
