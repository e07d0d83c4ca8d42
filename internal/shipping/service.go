package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/shipping"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/shopspring/decimal"
)

// TxManager runs fn in a single transaction.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo   Repository
	trm    TxManager
	logger logger.Logger
}

func NewService(repo Repository, trm TxManager, logger logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	return &Service{repo: repo, trm: trm, logger: logger}, nil
}

// List returns the stored table sorted by weight. An empty table is
// seeded with the default ladder first.
func (s *Service) List(ctx context.Context) (Table, error) {
	rates, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shipping rates: %w", err)
	}
	if len(rates) > 0 {
		return NewTable(rates), nil
	}

	var seeded []shipping.Rate

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		current, err := s.repo.List(ctx)
		if err != nil {
			return err
		}
		if len(current) > 0 {
			seeded = current
			return nil
		}
		seeded, err = s.repo.Insert(ctx, DefaultTable())
		return err
	})
	if err != nil {
		// Another instance seeded concurrently.
		if errors.Is(err, errs.ErrDataConflict) {
			rates, err = s.repo.List(ctx)
			if err != nil {
				return nil, fmt.Errorf("list shipping rates: %w", err)
			}
			return NewTable(rates), nil
		}
		return nil, fmt.Errorf("seed shipping rates: %w", err)
	}

	s.logger.With(ctx, "rows", len(seeded)).Info("default shipping rates seeded")

	return NewTable(seeded), nil
}

// Replace normalizes inputs and atomically replaces the whole table.
func (s *Service) Replace(ctx context.Context, inputs []Input) (Table, error) {
	table := Normalize(inputs)

	var stored []shipping.Rate

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteAll(ctx); err != nil {
			return fmt.Errorf("delete shipping rates: %w", err)
		}
		var err error
		stored, err = s.repo.Insert(ctx, table)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.With(ctx, "received", len(inputs), "stored", len(stored)).
		Info("shipping rates replaced")

	return NewTable(stored), nil
}

// PriceFor looks up the shipping price in roubles for weight in kg.
func (s *Service) PriceFor(ctx context.Context, weight decimal.Decimal) (int64, error) {
	table, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return table.PriceFor(weight)
}
