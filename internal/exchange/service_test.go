package exchange

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/cbr"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/rate"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, repo *mockRepository, source *mockSource) *Service {
	t.Helper()
	l, _ := logger.NewForTest()
	s, err := NewService(repo, source, mockTxManager{}, l, nil)
	require.NoError(t, err)
	return s
}

func TestGetDefaultWhenEmpty(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, &mockSource{})

	er, err := s.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, rate.DEFAULT, er.Source)
	assert.True(t, er.RUBRate.Equal(decimal.NewFromInt(80)))
	assert.True(t, er.EURRate.Equal(rate.DefaultEURRate), "eurRate %s", er.EURRate)
	assert.True(t, er.RUBPerEUR().Round(4).Equal(decimal.NewFromInt(95)))

	// The default is not persisted.
	assert.Nil(t, repo.current)
	assert.Zero(t, repo.historyLen())
}

func TestSetManualRoundTrip(t *testing.T) {
	tests := []struct {
		rubPerUSD float64
		rubPerEUR float64
	}{
		{rubPerUSD: 91.5, rubPerEUR: 99.1},
		{rubPerUSD: 80, rubPerEUR: 95},
		{rubPerUSD: 0.0001, rubPerEUR: 1e6},
		{rubPerUSD: 123456.789, rubPerEUR: 0.5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(fmt.Sprintf("%v/%v", tt.rubPerUSD, tt.rubPerEUR), func(t *testing.T) {
			t.Parallel()

			repo := &mockRepository{}
			s := newTestService(t, repo, &mockSource{})

			_, err := s.SetManual(context.Background(), tt.rubPerUSD, tt.rubPerEUR)
			require.NoError(t, err)

			er, err := s.Get(context.Background())
			require.NoError(t, err)

			wantRUB := decimal.NewFromFloat(tt.rubPerUSD)
			wantEUR := wantRUB.DivRound(decimal.NewFromFloat(tt.rubPerEUR), rate.Scale)

			assert.True(t, er.RUBRate.Equal(wantRUB), "rubRate %s != %s", er.RUBRate, wantRUB)
			assert.True(t, er.EURRate.Equal(wantEUR), "eurRate %s != %s", er.EURRate, wantEUR)
			assert.Equal(t, rate.MANUAL, er.Source)
			assert.Equal(t, 1, repo.historyLen())
		})
	}
}

func TestSetManualRejectsInvalid(t *testing.T) {
	tests := []struct {
		name      string
		rubPerUSD float64
		rubPerEUR float64
	}{
		{name: "zero usd", rubPerUSD: 0, rubPerEUR: 95},
		{name: "negative eur", rubPerUSD: 80, rubPerEUR: -1},
		{name: "nan", rubPerUSD: math.NaN(), rubPerEUR: 95},
		{name: "inf", rubPerUSD: 80, rubPerEUR: math.Inf(1)},
		{name: "negative inf", rubPerUSD: math.Inf(-1), rubPerEUR: 95},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stored := &rate.ExchangeRate{
				Source:  rate.CBR,
				EURRate: decimal.RequireFromString("0.93"),
				RUBRate: decimal.RequireFromString("92.5"),
			}
			repo := &mockRepository{current: stored}
			s := newTestService(t, repo, &mockSource{})

			_, err := s.SetManual(context.Background(), tt.rubPerUSD, tt.rubPerEUR)
			assert.ErrorIs(t, err, errs.ErrValidation)

			er, err := s.Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, stored, er)
			assert.Zero(t, repo.historyLen())
		})
	}
}

func TestSetRejectsNonPositiveDecimals(t *testing.T) {
	s := newTestService(t, &mockRepository{}, &mockSource{})

	_, err := s.Set(context.Background(), decimal.Zero, decimal.NewFromInt(80), rate.MANUAL)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Set(context.Background(), decimal.NewFromInt(1), decimal.NewFromInt(-80), rate.MANUAL)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Set(context.Background(), decimal.NewFromInt(1), decimal.NewFromInt(80), rate.Source("ecb"))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRefreshFromSource(t *testing.T) {
	repo := &mockRepository{}
	source := &mockSource{quote: cbr.Quote{
		USD: decimal.RequireFromString("93.4409"),
		EUR: decimal.RequireFromString("99.8389"),
	}}
	s := newTestService(t, repo, source)

	er, err := s.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, rate.CBR, er.Source)
	assert.True(t, er.RUBRate.Equal(decimal.RequireFromString("93.4409")))
	assert.True(t, er.EURRate.Equal(
		decimal.RequireFromString("93.4409").DivRound(decimal.RequireFromString("99.8389"), rate.Scale)))
	assert.True(t, er.RUBPerEUR().Round(4).Equal(decimal.RequireFromString("99.8389")))

	history, err := s.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rate.CBR, history[0].Source)
}

func TestRefreshUnreachableFallsBackToDefault(t *testing.T) {
	repo := &mockRepository{current: &rate.ExchangeRate{
		Source:  rate.CBR,
		EURRate: decimal.RequireFromString("0.93"),
		RUBRate: decimal.RequireFromString("92.5"),
	}}
	source := &mockSource{err: fmt.Errorf("%w: connection refused", cbr.ErrUnavailable)}
	s := newTestService(t, repo, source)

	er, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rate.DEFAULT, er.Source)

	stored, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rate.DEFAULT, stored.Source)
	assert.True(t, stored.RUBRate.Equal(decimal.NewFromInt(80)))
	assert.True(t, stored.EURRate.Equal(rate.DefaultEURRate))

	history, err := s.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rate.DEFAULT, history[0].Source)
}

func TestRefreshMalformedFallsBackToDefault(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, &mockSource{err: cbr.ErrMalformed})

	er, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rate.DEFAULT, er.Source)
	assert.Equal(t, 1, repo.historyLen())
}

func TestRefreshStorageFailure(t *testing.T) {
	repo := &mockRepository{failWrite: true}
	s := newTestService(t, repo, &mockSource{err: cbr.ErrUnavailable})

	_, err := s.Refresh(context.Background())
	assert.Error(t, err)
	assert.Zero(t, repo.historyLen())
}

func TestHistoryNewestFirstAndLimit(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, &mockSource{})

	for _, usd := range []float64{90, 91, 92} {
		_, err := s.SetManual(context.Background(), usd, 100)
		require.NoError(t, err)
	}

	history, err := s.History(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].RUBRate.Equal(decimal.NewFromInt(92)))
	assert.True(t, history[1].RUBRate.Equal(decimal.NewFromInt(91)))
}

func TestNewServiceNilDependencies(t *testing.T) {
	l, _ := logger.NewForTest()

	_, err := NewService(nil, &mockSource{}, mockTxManager{}, l, nil)
	assert.Error(t, err)
	_, err = NewService(&mockRepository{}, nil, mockTxManager{}, l, nil)
	assert.Error(t, err)
	_, err = NewService(&mockRepository{}, &mockSource{}, nil, l, nil)
	assert.Error(t, err)
}
