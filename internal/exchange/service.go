package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/cbr"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/metrics"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/rate"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// RateSource returns roubles per one USD and per one EUR.
type RateSource interface {
	Fetch(ctx context.Context) (cbr.Quote, error)
}

// TxManager runs fn in a single transaction.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo    Repository
	source  RateSource
	trm     TxManager
	logger  logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(
	repo Repository, source RateSource, trm TxManager, logger logger.Logger, metrics *metrics.Metrics,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if source == nil {
		return nil, errors.New("nil dependency: rate source")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	return &Service{
		repo:    repo,
		source:  source,
		trm:     trm,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Get returns the current rate or the hardcoded default when nothing
// has been stored yet. The default is not persisted.
func (s *Service) Get(ctx context.Context) (*rate.ExchangeRate, error) {
	er, err := s.repo.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return rate.Default(), nil
		}
		return nil, fmt.Errorf("get current rate: %w", err)
	}

	return er, nil
}

// Set stores a new current rate and appends it to the history in one
// transaction. The current row is written first.
func (s *Service) Set(ctx context.Context, eurRate, rubRate decimal.Decimal, source rate.Source) (*rate.ExchangeRate, error) {
	if !eurRate.IsPositive() || !rubRate.IsPositive() {
		return nil, fmt.Errorf("%w: rates must be positive, got eur %s rub %s",
			errs.ErrValidation, eurRate, rubRate)
	}

	switch source {
	case rate.CBR, rate.MANUAL, rate.DEFAULT:
	default:
		return nil, fmt.Errorf("%w: unknown rate source %q", errs.ErrValidation, source)
	}

	// Rounded to the storage scale so that a later Get reads back exactly
	// what Set returned.
	eurRate, rubRate = eurRate.Round(rate.Scale), rubRate.Round(rate.Scale)
	if !eurRate.IsPositive() || !rubRate.IsPositive() {
		return nil, fmt.Errorf("%w: rates vanish at %d decimal places", errs.ErrValidation, rate.Scale)
	}

	er := &rate.ExchangeRate{
		UpdatedAt: s.now().UTC(),
		Source:    source,
		EURRate:   eurRate,
		RUBRate:   rubRate,
	}

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.UpsertCurrent(ctx, er); err != nil {
			return fmt.Errorf("upsert current rate: %w", err)
		}
		if err := s.repo.AppendHistory(ctx, er); err != nil {
			return fmt.Errorf("append rate history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RateWritten(string(source))

	return er, nil
}

// SetManual applies an admin override given as roubles per USD and
// roubles per EUR.
func (s *Service) SetManual(ctx context.Context, rubPerUSD, rubPerEUR float64) (*rate.ExchangeRate, error) {
	if !isPositiveFinite(rubPerUSD) || !isPositiveFinite(rubPerEUR) {
		return nil, fmt.Errorf("%w: rubPerUsd and rubPerEur must be positive finite numbers",
			errs.ErrValidation)
	}

	rub := decimal.NewFromFloat(rubPerUSD)
	eur := rub.DivRound(decimal.NewFromFloat(rubPerEUR), rate.Scale)

	er, err := s.Set(ctx, eur, rub, rate.MANUAL)
	if err != nil {
		return nil, err
	}

	s.logger.With(ctx, "rub_per_usd", rubPerUSD, "rub_per_eur", rubPerEUR).
		Info("exchange rate set manually")

	return er, nil
}

// Refresh pulls the rates from the source. When the source fails the
// default rates are written instead so the current row always reflects
// the latest attempt. Only storage failures are returned.
func (s *Service) Refresh(ctx context.Context) (*rate.ExchangeRate, error) {
	q, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.With(ctx, "error", err.Error()).
			Warn("rate source fetch failed, falling back to default rates")

		def := rate.Default()
		return s.Set(ctx, def.EURRate, def.RUBRate, rate.DEFAULT)
	}

	if !q.USD.IsPositive() || !q.EUR.IsPositive() {
		s.logger.With(ctx, "usd", q.USD.String(), "eur", q.EUR.String()).
			Warn("rate source returned non-positive rates, falling back to default rates")

		def := rate.Default()
		return s.Set(ctx, def.EURRate, def.RUBRate, rate.DEFAULT)
	}

	er, err := s.Set(ctx, q.USD.DivRound(q.EUR, rate.Scale), q.USD, rate.CBR)
	if err != nil {
		return nil, err
	}

	s.logger.With(ctx, "usd", q.USD.String(), "eur", q.EUR.String()).
		Info("exchange rates refreshed from rate source")

	return er, nil
}

// History returns the latest rate writes, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*rate.HistoryEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	entries, err := s.repo.ListHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list rate history: %w", err)
	}

	return entries, nil
}

func isPositiveFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}
