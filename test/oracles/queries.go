package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_holdings_nonnegative",
			SQL:  `SELECT holder_id, item_id, quantity FROM holdings WHERE quantity < 0`,
		},
		{
			Name: "O2_entitlements_nonnegative",
			SQL:  `SELECT kind, event_id, claimant_id, remaining FROM claim_entitlements WHERE remaining < 0`,
		},
		{
			// Claimants only gain stock through claims, and every claim
			// commits its outbox fact in the same transaction, so a
			// claimant's holdings must equal the units their facts report.
			Name: "O3_claim_conservation",
			SQL: `WITH claimed AS (
                      SELECT payload->>'claimant' AS claimant,
                             SUM((payload->>'units')::bigint) AS units
                      FROM outbox
                      WHERE topic = 'claim.executed'
                      GROUP BY 1
                  ),
                  held AS (
                      SELECT holder_id, SUM(quantity) AS qty
                      FROM holdings
                      WHERE holder_id NOT LIKE 'stress-vault%'
                        AND holder_id <> 'market.escrow'
                      GROUP BY 1
                  )
                  SELECT h.holder_id, h.qty, COALESCE(c.units, 0) AS units
                  FROM held h
                  LEFT JOIN claimed c ON c.claimant = h.holder_id
                  WHERE h.qty <> COALESCE(c.units, 0)`,
		},
		{
			Name: "O4_single_event_shape",
			SQL:  `SELECT kind, id FROM claim_events WHERE kind = 'single' AND cardinality(item_ids) <> 1`,
		},
		{
			Name: "O5_stale_outbox",
			SQL: `SELECT id, topic, status, attempts FROM outbox
                  WHERE status NOT IN ('processed','dead')
                    AND now() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O6_tokens_nonnegative",
			SQL:  `SELECT account_id, amount FROM token_balances WHERE amount < 0`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
