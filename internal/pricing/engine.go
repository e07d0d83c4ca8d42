package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/customs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/metrics"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/rate"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/shopspring/decimal"
)

// RateProvider returns the current effective exchange rate.
type RateProvider interface {
	Get(ctx context.Context) (*rate.ExchangeRate, error)
}

// ShippingPricer returns the shipping price in roubles for a weight in kg.
type ShippingPricer interface {
	PriceFor(ctx context.Context, weight decimal.Decimal) (int64, error)
}

// Line is a cart position priced in EUR.
type Line struct {
	ProductID string          `json:"productId"`
	PriceEUR  decimal.Decimal `json:"priceEur"`
	Quantity  int             `json:"quantity"`
}

type QuoteRequest struct {
	WeightKg decimal.Decimal `json:"weightKg"`
	Items    []Line          `json:"items"`
}

// QuotedLine is a Line converted to whole roubles.
type QuotedLine struct {
	ProductID    string          `json:"productId"`
	PriceEUR     decimal.Decimal `json:"priceEur"`
	Quantity     int             `json:"quantity"`
	UnitPriceRub int64           `json:"unitPriceRub"`
	LineTotalRub int64           `json:"lineTotalRub"`
}

// Quote is a priced cart together with the rate it was priced at.
type Quote struct {
	RateSource       rate.Source     `json:"rateSource"`
	RUBPerEUR        decimal.Decimal `json:"rubPerEur"`
	OriginalSumEUR   decimal.Decimal `json:"originalSumEur"`
	DutyThresholdEUR decimal.Decimal `json:"dutyThresholdEur"`
	Items            []QuotedLine    `json:"items"`
	Subtotal         int64           `json:"subtotal"`
	Shipping         int64           `json:"shipping"`
	Total            int64           `json:"total"`
	DutyApplies      bool            `json:"dutyApplies"`
}

// MaxTotalRub is the largest order total in roubles a quote may reach.
// It matches the orders.total_amount column.
var MaxTotalRub = decimal.RequireFromString("999999999999")

type Engine struct {
	rates    RateProvider
	shipping ShippingPricer
	logger   logger.Logger
	metrics  *metrics.Metrics
}

func NewEngine(
	rates RateProvider, shipping ShippingPricer, logger logger.Logger, metrics *metrics.Metrics,
) (*Engine, error) {
	if rates == nil {
		return nil, errors.New("nil dependency: rate provider")
	}
	if shipping == nil {
		return nil, errors.New("nil dependency: shipping pricer")
	}
	return &Engine{rates: rates, shipping: shipping, logger: logger, metrics: metrics}, nil
}

// Quote prices req at the current rate. Unit prices are rounded up to
// whole roubles before being multiplied by quantity.
func (e *Engine) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	er, err := e.rates.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get exchange rate: %w", err)
	}

	// Rounded so that 80 / (80/95) prices at exactly 95.
	rubPerEUR := er.RUBPerEUR().Round(4)
	if !rubPerEUR.IsPositive() {
		return nil, fmt.Errorf("unusable exchange rate: %s roubles per euro", rubPerEUR)
	}

	shippingRub, err := e.shipping.PriceFor(ctx, req.WeightKg)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		RateSource:       er.Source,
		RUBPerEUR:        rubPerEUR,
		OriginalSumEUR:   decimal.Zero,
		DutyThresholdEUR: customs.Threshold,
		Items:            make([]QuotedLine, 0, len(req.Items)),
		Shipping:         shippingRub,
	}

	total := decimal.NewFromInt(shippingRub)

	for i, l := range req.Items {
		qty := decimal.NewFromInt(int64(l.Quantity))
		unit := l.PriceEUR.Mul(rubPerEUR).Ceil()
		line := unit.Mul(qty)

		total = total.Add(line)
		if total.GreaterThan(MaxTotalRub) {
			return nil, fmt.Errorf("%w: items[%d]: order total exceeds %s roubles",
				errs.ErrValidation, i, MaxTotalRub)
		}

		ql := QuotedLine{
			ProductID:    l.ProductID,
			PriceEUR:     l.PriceEUR,
			Quantity:     l.Quantity,
			UnitPriceRub: unit.IntPart(),
			LineTotalRub: line.IntPart(),
		}

		q.Items = append(q.Items, ql)
		q.Subtotal += ql.LineTotalRub
		q.OriginalSumEUR = q.OriginalSumEUR.Add(l.PriceEUR.Mul(qty))
	}

	q.Total = q.Subtotal + q.Shipping
	q.DutyApplies = customs.Applies(q.OriginalSumEUR)

	e.metrics.Quote(q.DutyApplies)

	return q, nil
}

func validate(req QuoteRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", errs.ErrValidation)
	}

	for i, l := range req.Items {
		if l.Quantity < 1 {
			return fmt.Errorf("%w: items[%d].quantity must be at least 1", errs.ErrValidation, i)
		}
		if l.PriceEUR.IsNegative() {
			return fmt.Errorf("%w: items[%d].priceEur must not be negative", errs.ErrValidation, i)
		}
	}

	return nil
}
