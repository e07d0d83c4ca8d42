package rate

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source tells which write path produced a rate.
type Source string

const (
	CBR     Source = "cbr"
	MANUAL  Source = "manual"
	DEFAULT Source = "default"
)

// Scale is the number of fractional digits a stored rate keeps. It matches
// the NUMERIC(20, 10) rate columns.
const Scale = 10

// Fallback values used when no rate has ever been stored or the
// central bank could not be reached.
var (
	DefaultRUBRate   = decimal.NewFromInt(80)
	DefaultRUBPerEUR = decimal.NewFromInt(95)
	// 80/95, so that RUBRate / EURRate gives 95 roubles per euro.
	DefaultEURRate = DefaultRUBRate.DivRound(DefaultRUBPerEUR, Scale)
)

// ExchangeRate is the current effective rate pair.
//
// RUBRate is roubles per one US dollar. EURRate is the cross rate,
// so RUBRate / EURRate is roubles per one euro.
type ExchangeRate struct {
	UpdatedAt time.Time       `json:"updatedAt"`
	Source    Source          `json:"source"`
	EURRate   decimal.Decimal `json:"eurRate"`
	RUBRate   decimal.Decimal `json:"rubRate"`
}

// Default returns the hardcoded rate pair.
func Default() *ExchangeRate {
	return &ExchangeRate{
		Source:  DEFAULT,
		EURRate: DefaultEURRate,
		RUBRate: DefaultRUBRate,
	}
}

// RUBPerEUR returns roubles per one euro.
func (r *ExchangeRate) RUBPerEUR() decimal.Decimal {
	if r.EURRate.IsZero() {
		return decimal.Zero
	}
	return r.RUBRate.Div(r.EURRate)
}

// HistoryEntry is an append-only record of a rate write.
type HistoryEntry struct {
	CreatedAt time.Time       `json:"createdAt"`
	Source    Source          `json:"source"`
	EURRate   decimal.Decimal `json:"eurRate"`
	RUBRate   decimal.Decimal `json:"rubRate"`
	ID        int64           `json:"id"`
}
