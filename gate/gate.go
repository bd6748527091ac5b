package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"claimflow/auth"
	"claimflow/claim"
)

// Gate answers capability checks from user roles. Managers hold every
// capability; claimants hold only claim execution.
type Gate struct {
	pool *pgxpool.Pool
}

func NewGate(pool *pgxpool.Pool) *Gate {
	return &Gate{pool: pool}
}

func (g *Gate) Has(ctx context.Context, cap claim.Capability, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	var role string
	err := g.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1::uuid`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("gate: lookup role: %w", err)
	}

	switch auth.Role(role) {
	case auth.RoleManager:
		return true, nil
	case auth.RoleClaimant:
		return cap == claim.CapClaim, nil
	default:
		return false, nil
	}
}

// PauseSwitch is the pause gate: a single control flag halting mutating
// traffic. Event disabling does not consult it.
type PauseSwitch struct {
	pool *pgxpool.Pool
}

func NewPauseSwitch(pool *pgxpool.Pool) *PauseSwitch {
	return &PauseSwitch{pool: pool}
}

func (p *PauseSwitch) Paused(ctx context.Context) (bool, error) {
	var enabled bool
	err := p.pool.QueryRow(ctx, `SELECT enabled FROM control_flags WHERE name = 'paused'`).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("gate: read pause flag: %w", err)
	}
	return enabled, nil
}

// SetPaused flips the pause flag. Capability enforcement happens at the API
// layer; this call only records the state.
func (p *PauseSwitch) SetPaused(ctx context.Context, paused bool) error {
	if _, err := p.pool.Exec(ctx, `
		INSERT INTO control_flags (name, enabled)
		VALUES ('paused', $1)
		ON CONFLICT (name) DO UPDATE SET enabled = EXCLUDED.enabled
	`, paused); err != nil {
		return fmt.Errorf("gate: set pause flag: %w", err)
	}
	return nil
}
