package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}

type fakeStore struct {
	holdings map[string]uint64
}

func holdingKey(holder string, itemID int64) string {
	return fmt.Sprintf("%s/%d", holder, itemID)
}

func (f *fakeStore) Balance(_ context.Context, holder string, itemID int64) (uint64, error) {
	return f.holdings[holdingKey(holder, itemID)], nil
}

func (f *fakeStore) Deposit(_ context.Context, _ pgx.Tx, holder string, itemID int64, amount uint64) error {
	f.holdings[holdingKey(holder, itemID)] += amount
	return nil
}

func TestService_DepositAndBalance(t *testing.T) {
	store := &fakeStore{holdings: map[string]uint64{}}
	pool := &fakePool{}
	svc := NewService(pool, store)

	if err := svc.Deposit(context.Background(), "vault-1", 7, 25); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := svc.Deposit(context.Background(), "vault-1", 7, 5); err != nil {
		t.Fatalf("second deposit: %v", err)
	}

	got, err := svc.Balance(context.Background(), "vault-1", 7)
	if err != nil || got != 30 {
		t.Fatalf("balance = %d, %v; want 30", got, err)
	}
	if pool.tx == nil || !pool.tx.committed {
		t.Error("expected committed transaction")
	}
}

func TestService_DepositMissingHolder(t *testing.T) {
	store := &fakeStore{holdings: map[string]uint64{}}
	pool := &fakePool{}
	svc := NewService(pool, store)

	if err := svc.Deposit(context.Background(), "", 7, 25); err == nil {
		t.Fatal("expected validation error for missing holder")
	}
	if pool.tx != nil {
		t.Error("no transaction should begin on validation failure")
	}
}

func TestService_BalanceAbsentIsZero(t *testing.T) {
	store := &fakeStore{holdings: map[string]uint64{}}
	svc := NewService(&fakePool{}, store)

	got, err := svc.Balance(context.Background(), "nobody", 1)
	if err != nil || got != 0 {
		t.Fatalf("balance = %d, %v; want 0, nil", got, err)
	}
}
