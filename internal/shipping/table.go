package shipping

import (
	"fmt"
	"math"
	"sort"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/shipping"
	"github.com/shopspring/decimal"
)

// MaxWeightKg is the heaviest step the shipping_rates.weight_kg column holds.
var MaxWeightKg = decimal.RequireFromString("99999.9")

// Table is a weight to price ladder sorted by weight ascending.
type Table []shipping.Rate

// DefaultTable is seeded when no rates are stored.
func DefaultTable() Table {
	ladder := []struct {
		weight string
		price  int64
	}{
		{"0.1", 300}, {"0.2", 320}, {"0.3", 340}, {"0.4", 360}, {"0.5", 380},
		{"0.6", 400}, {"0.7", 420}, {"0.8", 440}, {"0.9", 460}, {"1.0", 480},
		{"1.2", 520}, {"1.4", 560}, {"1.6", 600}, {"1.8", 640}, {"2.0", 680},
	}

	t := make(Table, 0, len(ladder))
	for _, l := range ladder {
		t = append(t, shipping.Rate{WeightKg: decimal.RequireFromString(l.weight), PriceRub: l.price})
	}
	return t
}

// NewTable returns a sorted copy of rates.
func NewTable(rates []shipping.Rate) Table {
	t := make(Table, len(rates))
	copy(t, rates)
	sort.SliceStable(t, func(i, j int) bool {
		return t[i].WeightKg.LessThan(t[j].WeightKg)
	})
	return t
}

// MaxWeight returns the heaviest tabulated weight.
func (t Table) MaxWeight() (decimal.Decimal, bool) {
	if len(t) == 0 {
		return decimal.Zero, false
	}
	return t[len(t)-1].WeightKg, true
}

// PriceFor returns the price of the smallest tabulated weight that is
// not less than weight. The table does not extrapolate.
func (t Table) PriceFor(weight decimal.Decimal) (int64, error) {
	if weight.IsNegative() {
		return 0, fmt.Errorf("%w: weight must not be negative, got %s", errs.ErrValidation, weight)
	}

	i := sort.Search(len(t), func(i int) bool {
		return t[i].WeightKg.GreaterThanOrEqual(weight)
	})
	if i == len(t) {
		max, _ := t.MaxWeight()
		return 0, fmt.Errorf("%w: weight %s kg exceeds the maximum tabulated weight %s kg",
			errs.ErrOutOfRange, weight, max)
	}

	return t[i].PriceRub, nil
}

// Input is an unvalidated table row as sent by an admin.
type Input struct {
	ID       *int     `json:"id,omitempty"`
	WeightKg *float64 `json:"weightKg"`
	PriceRub *float64 `json:"priceRub"`
}

// Normalize rounds weights to one decimal place and prices to whole
// roubles. Invalid rows are dropped. For duplicate weights the last row wins.
func Normalize(inputs []Input) Table {
	byWeight := make(map[string]shipping.Rate, len(inputs))

	for _, in := range inputs {
		if in.WeightKg == nil || in.PriceRub == nil {
			continue
		}
		w, p := *in.WeightKg, *in.PriceRub
		if !isFinite(w) || !isFinite(p) || w < 0 || p < 0 {
			continue
		}

		price := math.Round(p)
		if price > math.MaxInt64/2 {
			continue
		}

		weight := decimal.NewFromFloat(w).Round(1)
		if weight.GreaterThan(MaxWeightKg) {
			continue
		}

		byWeight[weight.String()] = shipping.Rate{WeightKg: weight, PriceRub: int64(price)}
	}

	rates := make([]shipping.Rate, 0, len(byWeight))
	for _, r := range byWeight {
		rates = append(rates, r)
	}

	return NewTable(rates)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
