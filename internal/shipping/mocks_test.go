package shipping

import (
	"context"
	"sync"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/shipping"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	rates     []shipping.Rate
	nextID    int
	inserts   int
	insertErr error
	mu        sync.RWMutex
}

func (m *mockRepository) List(_ context.Context) ([]shipping.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]shipping.Rate, len(m.rates))
	copy(res, m.rates)
	return res, nil
}

func (m *mockRepository) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = nil
	return nil
}

func (m *mockRepository) Insert(_ context.Context, rates []shipping.Rate) ([]shipping.Rate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	stored := make([]shipping.Rate, 0, len(rates))
	for _, sr := range rates {
		m.nextID++
		sr.ID = m.nextID
		stored = append(stored, sr)
	}
	m.rates = append(m.rates, stored...)
	return stored, nil
}

// Runs fn without a real transaction.
type mockTxManager struct{}

func (mockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
