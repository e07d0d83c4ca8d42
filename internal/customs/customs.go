// Package customs holds the personal import duty policy.
package customs

import "github.com/shopspring/decimal"

// Threshold is the order value in EUR above which duty is charged.
var Threshold = decimal.RequireFromString("200.00")

// Applies reports whether an order of sumEUR exceeds the duty-free limit.
// An order of exactly Threshold is duty free.
func Applies(sumEUR decimal.Decimal) bool {
	return sumEUR.GreaterThan(Threshold)
}
