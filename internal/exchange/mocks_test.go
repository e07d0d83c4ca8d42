package exchange

import (
	"context"
	"errors"
	"sync"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/cbr"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/rate"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	current   *rate.ExchangeRate
	history   []*rate.HistoryEntry
	failWrite bool
	mu        sync.RWMutex
}

func (m *mockRepository) GetCurrent(_ context.Context) (*rate.ExchangeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, errs.ErrNotFound
	}
	c := *m.current
	return &c, nil
}

func (m *mockRepository) UpsertCurrent(_ context.Context, r *rate.ExchangeRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("don't panic!")
	}
	c := *r
	m.current = &c
	return nil
}

func (m *mockRepository) AppendHistory(_ context.Context, r *rate.ExchangeRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, &rate.HistoryEntry{
		ID:        int64(len(m.history) + 1),
		CreatedAt: r.UpdatedAt,
		Source:    r.Source,
		EURRate:   r.EURRate,
		RUBRate:   r.RUBRate,
	})
	return nil
}

func (m *mockRepository) ListHistory(_ context.Context, limit int) ([]*rate.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*rate.HistoryEntry, 0, limit)
	for i := len(m.history) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, m.history[i])
	}
	return res, nil
}

func (m *mockRepository) historyLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

type mockSource struct {
	quote cbr.Quote
	err   error
	calls int
	mu    sync.Mutex
}

func (m *mockSource) Fetch(_ context.Context) (cbr.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.quote, m.err
}

func (m *mockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Runs fn without a real transaction.
type mockTxManager struct{}

func (mockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
