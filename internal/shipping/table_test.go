package shipping

import (
	"math"
	"testing"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestTablePriceFor(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name    string
		weight  string
		want    int64
		wantErr error
	}{
		{name: "zero weight", weight: "0", want: 300},
		{name: "below first step", weight: "0.05", want: 300},
		{name: "exact step", weight: "0.1", want: 300},
		{name: "rounds up to next step", weight: "0.11", want: 320},
		{name: "gap in ladder", weight: "1.05", want: 520},
		{name: "max weight", weight: "2.0", want: 680},
		{name: "above max", weight: "2.01", wantErr: errs.ErrOutOfRange},
		{name: "negative", weight: "-0.1", wantErr: errs.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.PriceFor(decimal.RequireFromString(tt.weight))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTablePriceForIsMonotonic(t *testing.T) {
	table := DefaultTable()
	max, ok := table.MaxWeight()
	require.True(t, ok)

	prev := int64(0)
	step := decimal.RequireFromString("0.01")
	for w := decimal.Zero; w.LessThanOrEqual(max); w = w.Add(step) {
		price, err := table.PriceFor(w)
		require.NoError(t, err, "weight %s", w)
		assert.GreaterOrEqual(t, price, prev, "weight %s", w)
		prev = price
	}
}

func TestEmptyTableIsOutOfRange(t *testing.T) {
	_, err := Table{}.PriceFor(decimal.NewFromInt(1))
	assert.ErrorIs(t, err, errs.ErrOutOfRange)

	_, ok := Table{}.MaxWeight()
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	inputs := []Input{
		{WeightKg: ptr(0.54), PriceRub: ptr(399.6)},
		{WeightKg: ptr(0.15), PriceRub: ptr(330.0)},
		{WeightKg: ptr(0.2), PriceRub: ptr(999.0)}, // overridden below
		{WeightKg: ptr(0.2), PriceRub: ptr(320.4)},
		{WeightKg: ptr(-1.0), PriceRub: ptr(100.0)},
		{WeightKg: ptr(1.0), PriceRub: ptr(-5.0)},
		{WeightKg: ptr(math.NaN()), PriceRub: ptr(100.0)},
		{WeightKg: ptr(1.0), PriceRub: ptr(math.Inf(1))},
		{PriceRub: ptr(100.0)},
		{WeightKg: ptr(1.0)},
		{ID: ptr(7), WeightKg: ptr(0.0), PriceRub: ptr(0.0)},
		{WeightKg: ptr(100000.0), PriceRub: ptr(5000.0)},
		{WeightKg: ptr(99999.96), PriceRub: ptr(5000.0)},
		{WeightKg: ptr(99999.9), PriceRub: ptr(4000.0)},
	}

	table := Normalize(inputs)
	require.Len(t, table, 4)

	assert.Equal(t, "0", table[0].WeightKg.String())
	assert.Equal(t, int64(0), table[0].PriceRub)
	// 0.15 and 0.2 collapse into one step, the later row wins.
	assert.Equal(t, "0.2", table[1].WeightKg.String())
	assert.Equal(t, int64(320), table[1].PriceRub)
	assert.Equal(t, "0.5", table[2].WeightKg.String())
	assert.Equal(t, int64(400), table[2].PriceRub)
	// Heavier steps do not fit the column and are dropped.
	assert.Equal(t, "99999.9", table[3].WeightKg.String())
	assert.Equal(t, int64(4000), table[3].PriceRub)
}

func TestDefaultTableIsSorted(t *testing.T) {
	table := DefaultTable()
	require.Len(t, table, 15)
	for i := 1; i < len(table); i++ {
		assert.True(t, table[i-1].WeightKg.LessThan(table[i].WeightKg))
		assert.Less(t, table[i-1].PriceRub, table[i].PriceRub)
	}
}
