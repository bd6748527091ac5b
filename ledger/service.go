package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store abstracts repository operations for the service.
type Store interface {
	Balance(ctx context.Context, account string) (uint64, error)
	Credit(ctx context.Context, tx pgx.Tx, account string, amount uint64) error
	Debit(ctx context.Context, tx pgx.Tx, account string, amount uint64) error
}

// Service exposes the internal token operations: add, remove, transfer,
// spend, balance. Transfers are settlement moves between internal accounts;
// the token itself is not withdrawable.
type Service struct {
	pool TxBeginner
	repo Store
}

func NewService(pool TxBeginner, repo Store) *Service {
	return &Service{pool: pool, repo: repo}
}

func (s *Service) Balance(ctx context.Context, account string) (uint64, error) {
	return s.repo.Balance(ctx, account)
}

// Add mints tokens into an account.
func (s *Service) Add(ctx context.Context, account string, amount uint64) error {
	return s.inTx(ctx, "add", func(tx pgx.Tx) error {
		return s.repo.Credit(ctx, tx, account, amount)
	})
}

// Remove burns tokens from an account.
func (s *Service) Remove(ctx context.Context, account string, amount uint64) error {
	return s.inTx(ctx, "remove", func(tx pgx.Tx) error {
		return s.repo.Debit(ctx, tx, account, amount)
	})
}

// Spend burns tokens as payment for an internal action. Identical movement
// to Remove; kept as its own operation so callers state intent.
func (s *Service) Spend(ctx context.Context, account string, amount uint64) error {
	return s.inTx(ctx, "spend", func(tx pgx.Tx) error {
		return s.repo.Debit(ctx, tx, account, amount)
	})
}

// Transfer settles tokens between two internal accounts.
func (s *Service) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return s.inTx(ctx, "transfer", func(tx pgx.Tx) error {
		if err := s.repo.Debit(ctx, tx, from, amount); err != nil {
			return err
		}
		return s.repo.Credit(ctx, tx, to, amount)
	})
}

func (s *Service) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin %s tx: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit %s: %w", op, err)
	}
	return nil
}
