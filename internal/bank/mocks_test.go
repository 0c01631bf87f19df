package bank

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// memStore is an in-memory Store. transferHook, when set, runs before each
// transfer and can fail it.
type memStore struct {
	mu           sync.Mutex
	balances     map[int64]int64
	ledger       map[uuid.UUID]int64
	transferHook func(n int, t Transfer) error
	calls        int
	totalsErr    error
}

func newMemStore() *memStore {
	return &memStore{balances: make(map[int64]int64), ledger: make(map[uuid.UUID]int64)}
}

func (m *memStore) Init(_ context.Context, accounts int, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = make(map[int64]int64, accounts)
	for i := 0; i < accounts; i++ {
		m.balances[int64(i)] = balance
	}
	m.ledger = make(map[uuid.UUID]int64)
	return nil
}

func (m *memStore) Transfer(_ context.Context, t Transfer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.transferHook != nil {
		if err := m.transferHook(m.calls, t); err != nil {
			return false, err
		}
	}
	if m.balances[t.From] < t.Amount {
		return false, nil
	}
	m.balances[t.From] -= t.Amount
	m.balances[t.To] += t.Amount
	m.ledger[t.RunID]++
	return true, nil
}

func (m *memStore) Totals(context.Context) (Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalsErr != nil {
		return Totals{}, m.totalsErr
	}
	var t Totals
	for _, b := range m.balances {
		t.Accounts++
		t.Balance += b
	}
	return t, nil
}

func (m *memStore) Seeded(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.balances) > 0, nil
}

func (m *memStore) LedgerCount(_ context.Context, runID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger[runID], nil
}

func (m *memStore) setBalance(id, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] = balance
}

// fakeConn scripts the statements of one transfer transaction.
type fakeConn struct {
	balances map[int64]int64
	execs    []string
	execErr  map[string]error
}

func (f *fakeConn) exec(_ context.Context, query string, _ ...any) error {
	f.execs = append(f.execs, query)
	return f.execErr[query]
}

func (f *fakeConn) queryRow(_ context.Context, _ string, args ...any) row {
	b, ok := f.balances[args[0].(int64)]
	if !ok {
		return fakeRow{err: sql.ErrNoRows}
	}
	return fakeRow{v: b}
}

func (f *fakeConn) isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

type fakeRow struct {
	v   int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.v
	return nil
}
