package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/order"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	orders  map[string]*order.Order
	updates int
	findErr error
	mu      sync.RWMutex
}

func newMockRepository(orders ...*order.Order) *mockRepository {
	m := &mockRepository{orders: make(map[string]*order.Order)}
	for _, o := range orders {
		m.orders[*o.PaymentID] = o
	}
	return m
}

func (m *mockRepository) FindByPaymentIDForUpdate(_ context.Context, paymentID string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	o, ok := m.orders[paymentID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *mockRepository) UpdatePaymentStatus(
	_ context.Context, id int, status order.PaymentStatus, paidAt *time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID != id {
			continue
		}
		m.updates++
		o.PaymentStatus = status
		if o.PaidAt == nil && paidAt != nil {
			t := *paidAt
			o.PaidAt = &t
		}
		return nil
	}
	return errs.ErrNotFound
}

func (m *mockRepository) get(paymentID string) order.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.orders[paymentID]
}

type mockNotifier struct {
	msgs []notify.Message
	err  error
	mu   sync.Mutex
}

func (m *mockNotifier) Enqueue(_ context.Context, msg notify.Message) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	if m.err != nil {
		return uuid.Nil, m.err
	}
	return uuid.New(), nil
}

func (m *mockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// Runs fn without a real transaction.
type mockTxManager struct{}

func (mockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var errBoom = errors.New("connection refused")

func newOrder(id int, paymentID string, status order.PaymentStatus) *order.Order {
	return &order.Order{
		ID:            id,
		Number:        "ORD-" + paymentID,
		PaymentID:     &paymentID,
		PaymentStatus: status,
		TotalAmount:   decimal.NewFromInt(2336),
		Currency:      "RUB",
		Email:         "buyer@example.com",
		CustomerName:  "Alex",
	}
}
