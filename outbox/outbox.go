package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writer appends facts to the transactional outbox. Rows land in the same
// transaction as the state change they describe, so observers never see a
// fact without its effect or vice versa.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, string(body)); err != nil {
		return fmt.Errorf("outbox: enqueue %s: %w", topic, err)
	}
	return nil
}

// DispatchPending claims up to limit pending rows and marks them processed,
// returning how many were handled. Delivery itself is left to the caller's
// sink; this keeps at-least-once semantics.
func DispatchPending(ctx context.Context, pool *pgxpool.Pool, limit int, sink func(topic string, payload []byte) error) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("outbox: begin dispatch: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("outbox: select pending: %w", err)
	}

	type row struct {
		id      string
		topic   string
		payload []byte
	}
	pending := make([]row, 0, limit)
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.topic, &r.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("outbox: scan pending: %w", err)
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("outbox: iterate pending: %w", err)
	}

	handled := 0
	for _, r := range pending {
		if sink != nil {
			if err := sink(r.topic, r.payload); err != nil {
				continue
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox SET status='processed', attempts=attempts+1 WHERE id=$1`, r.id); err != nil {
			return 0, fmt.Errorf("outbox: mark processed: %w", err)
		}
		handled++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("outbox: commit dispatch: %w", err)
	}
	return handled, nil
}
