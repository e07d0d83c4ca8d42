package shipping

import "github.com/shopspring/decimal"

// Rate is a single row of the weight to price table.
type Rate struct {
	WeightKg decimal.Decimal `json:"weightKg"`
	PriceRub int64           `json:"priceRub"`
	ID       int             `json:"id"`
}
