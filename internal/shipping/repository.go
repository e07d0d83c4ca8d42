package shipping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/shipping"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	List(ctx context.Context) ([]shipping.Rate, error)
	DeleteAll(ctx context.Context) error
	Insert(ctx context.Context, rates []shipping.Rate) ([]shipping.Rate, error)
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) List(ctx context.Context) ([]shipping.Rate, error) {
	const query = "SELECT id, weight_kg, price_rub FROM shipping_rates ORDER BY weight_kg ASC"

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	rates := make([]shipping.Rate, 0)

	for rows.Next() {
		var sr shipping.Rate
		if err = rows.Scan(&sr.ID, &sr.WeightKg, &sr.PriceRub); err != nil {
			return nil, err
		}
		rates = append(rates, sr)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return rates, nil
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	const query = "DELETE FROM shipping_rates"

	if _, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query); err != nil {
		return err
	}

	return nil
}

// Insert stores rates and returns them with their new ids.
func (r *Repo) Insert(ctx context.Context, rates []shipping.Rate) ([]shipping.Rate, error) {
	const query = "INSERT INTO shipping_rates (weight_kg, price_rub) VALUES ($1, $2) RETURNING id"

	stored := make([]shipping.Rate, 0, len(rates))

	for _, sr := range rates {
		err := r.getter.DefaultTrOrDB(ctx, r.db).
			QueryRowContext(ctx, query, sr.WeightKg, sr.PriceRub).
			Scan(&sr.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return nil, fmt.Errorf("%w: weight %s kg already exists", errs.ErrDataConflict, sr.WeightKg)
			}
			return nil, fmt.Errorf("insert shipping rate: %w", err)
		}
		stored = append(stored, sr)
	}

	return stored, nil
}
