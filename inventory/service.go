package inventory

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
	Balance(ctx context.Context, holder string, itemID int64) (uint64, error)
	Deposit(ctx context.Context, tx pgx.Tx, holder string, itemID int64, amount uint64) error
}

// Service exposes the custody operations reachable from the API layer.
type Service struct {
	pool TxBeginner
	repo Store
}

func NewService(pool TxBeginner, repo Store) *Service {
	return &Service{pool: pool, repo: repo}
}

func (s *Service) Balance(ctx context.Context, holder string, itemID int64) (uint64, error) {
	return s.repo.Balance(ctx, holder, itemID)
}

// Deposit seeds stock into a holder account.
func (s *Service) Deposit(ctx context.Context, holder string, itemID int64, amount uint64) error {
	if holder == "" {
		return fmt.Errorf("inventory: missing holder")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("inventory: begin deposit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Deposit(ctx, tx, holder, itemID, amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("inventory: commit deposit: %w", err)
	}
	return nil
}
