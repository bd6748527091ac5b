package claim

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakePool struct {
	tx       *fakeTx
	beginErr error
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
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

func eventKey(kind Kind, id int64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

func entKey(kind Kind, id int64, claimant string) string {
	return fmt.Sprintf("%s/%d/%s", kind, id, claimant)
}

// fakeRepo keeps events and entitlements in maps and records the order of
// mutating calls in *log when one is supplied.
type fakeRepo struct {
	nextID       map[Kind]int64
	events       map[string]Event
	entitlements map[string]uint64
	log          *[]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextID:       map[Kind]int64{},
		events:       map[string]Event{},
		entitlements: map[string]uint64{},
	}
}

func (f *fakeRepo) record(call string) {
	if f.log != nil {
		*f.log = append(*f.log, call)
	}
}

func (f *fakeRepo) CreateEvent(_ context.Context, _ pgx.Tx, kind Kind, custodian string, itemIDs []int64, createdBy string) (Event, error) {
	f.nextID[kind]++
	ev := Event{
		ID:        f.nextID[kind],
		Kind:      kind,
		Active:    true,
		Custodian: custodian,
		ItemIDs:   itemIDs,
		CreatedBy: createdBy,
	}
	f.events[eventKey(kind, ev.ID)] = ev
	f.record("create_event")
	return ev, nil
}

func (f *fakeRepo) GetEventForUpdate(_ context.Context, _ pgx.Tx, kind Kind, id int64) (Event, error) {
	ev, ok := f.events[eventKey(kind, id)]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return ev, nil
}

func (f *fakeRepo) DisableEvent(_ context.Context, _ pgx.Tx, kind Kind, id int64) (bool, error) {
	ev, ok := f.events[eventKey(kind, id)]
	if !ok || !ev.Active {
		return false, nil
	}
	ev.Active = false
	f.events[eventKey(kind, id)] = ev
	f.record("disable_event")
	return true, nil
}

func (f *fakeRepo) ListActiveIDs(_ context.Context, kind Kind) ([]int64, error) {
	var ids []int64
	for _, ev := range f.events {
		if ev.Kind == kind && ev.Active {
			ids = append(ids, ev.ID)
		}
	}
	return ids, nil
}

func (f *fakeRepo) GetEntitlement(_ context.Context, kind Kind, eventID int64, claimant string) (uint64, error) {
	return f.entitlements[entKey(kind, eventID, claimant)], nil
}

func (f *fakeRepo) GetEntitlementForUpdate(_ context.Context, _ pgx.Tx, kind Kind, eventID int64, claimant string) (uint64, error) {
	return f.entitlements[entKey(kind, eventID, claimant)], nil
}

func (f *fakeRepo) SetEntitlement(_ context.Context, _ pgx.Tx, kind Kind, eventID int64, claimant string, amount uint64) error {
	f.entitlements[entKey(kind, eventID, claimant)] = amount
	f.record("set_entitlement")
	return nil
}

func (f *fakeRepo) DecrementEntitlement(_ context.Context, _ pgx.Tx, kind Kind, eventID int64, claimant string, by uint64) (uint64, error) {
	key := entKey(kind, eventID, claimant)
	current := f.entitlements[key]
	if by > current {
		return 0, fmt.Errorf("fakeRepo: decrement %d exceeds %d", by, current)
	}
	f.entitlements[key] = current - by
	f.record("decrement_entitlement")
	return current - by, nil
}

// fakeInventory serves fixed balances and records transfers.
type fakeInventory struct {
	balances   []uint64
	balanceErr error
	transfers  [][]uint64
	log        *[]string
}

func (f *fakeInventory) BalanceBatch(_ context.Context, _ pgx.Tx, _ string, itemIDs []int64) ([]uint64, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	out := make([]uint64, len(itemIDs))
	copy(out, f.balances)
	return out, nil
}

func (f *fakeInventory) TransferBatch(_ context.Context, _ pgx.Tx, _, _ string, _ []int64, amounts []uint64) error {
	copied := make([]uint64, len(amounts))
	copy(copied, amounts)
	f.transfers = append(f.transfers, copied)
	if f.log != nil {
		*f.log = append(*f.log, "transfer")
	}
	return nil
}

type fakeOutbox struct {
	entries []fakeFact
}

type fakeFact struct {
	topic   string
	payload map[string]any
}

func (f *fakeOutbox) Enqueue(_ context.Context, _ pgx.Tx, topic string, payload map[string]any) error {
	f.entries = append(f.entries, fakeFact{topic: topic, payload: payload})
	return nil
}

// openGate grants every capability; deniedGate grants none.
type openGate struct{}

func (openGate) Has(context.Context, Capability, string) (bool, error) { return true, nil }

type deniedGate struct{}

func (deniedGate) Has(context.Context, Capability, string) (bool, error) { return false, nil }

type pauseState bool

func (p pauseState) Paused(context.Context) (bool, error) { return bool(p), nil }
