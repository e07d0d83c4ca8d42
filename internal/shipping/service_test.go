package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/shipping"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	l, _ := logger.NewForTest()
	s, err := NewService(repo, mockTxManager{}, l)
	require.NoError(t, err)
	return s
}

func TestNewServiceDependencies(t *testing.T) {
	l, _ := logger.NewForTest()

	_, err := NewService(nil, mockTxManager{}, l)
	assert.Error(t, err)

	_, err = NewService(&mockRepository{}, nil, l)
	assert.Error(t, err)
}

func TestListSeedsDefaultsOnce(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo)

	table, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, len(DefaultTable()))
	assert.Equal(t, 1, repo.inserts)

	_, err = s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.inserts, "seeding must not repeat")
}

func TestListSeedConflictRereads(t *testing.T) {
	repo := &mockRepository{insertErr: errs.ErrDataConflict}
	s := newTestService(t, repo)

	table, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestListSeedFailure(t *testing.T) {
	repo := &mockRepository{insertErr: errors.New("connection reset")}
	s := newTestService(t, repo)

	_, err := s.List(context.Background())
	assert.Error(t, err)
}

func TestReplaceAndPriceFor(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo)

	table, err := s.Replace(context.Background(), []Input{
		{WeightKg: ptr(1.0), PriceRub: ptr(500.0)},
		{WeightKg: ptr(0.5), PriceRub: ptr(250.0)},
		{WeightKg: ptr(-2.0), PriceRub: ptr(1.0)},
	})
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, int64(250), table[0].PriceRub)

	price, err := s.PriceFor(context.Background(), decimal.RequireFromString("0.7"))
	require.NoError(t, err)
	assert.Equal(t, int64(500), price)

	_, err = s.PriceFor(context.Background(), decimal.RequireFromString("1.1"))
	assert.ErrorIs(t, err, errs.ErrOutOfRange)
}

func TestReplaceWithEmptyTableReseeds(t *testing.T) {
	repo := &mockRepository{rates: []shipping.Rate{{ID: 1, WeightKg: decimal.NewFromInt(1), PriceRub: 1}}}
	s := newTestService(t, repo)

	table, err := s.Replace(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, table)

	// The next read finds an empty table and seeds the default ladder.
	table, err = s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, len(DefaultTable()))
}
