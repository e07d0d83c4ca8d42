package exchange

import (
	"context"
	"database/sql"
	"errors"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/rate"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
)

type Repository interface {
	GetCurrent(ctx context.Context) (*rate.ExchangeRate, error)
	UpsertCurrent(ctx context.Context, r *rate.ExchangeRate) error
	AppendHistory(ctx context.Context, r *rate.ExchangeRate) error
	ListHistory(ctx context.Context, limit int) ([]*rate.HistoryEntry, error)
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

func (r *Repo) GetCurrent(ctx context.Context) (*rate.ExchangeRate, error) {
	const query = "SELECT eur_rate, rub_rate, source, updated_at FROM exchange_rates WHERE id = 1"

	er := new(rate.ExchangeRate)

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query).Scan(
		&er.EURRate,
		&er.RUBRate,
		&er.Source,
		&er.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return er, nil
}

// UpsertCurrent overwrites the single current rate row.
func (r *Repo) UpsertCurrent(ctx context.Context, er *rate.ExchangeRate) error {
	const query = `
		INSERT INTO exchange_rates (id, eur_rate, rub_rate, source, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			eur_rate = EXCLUDED.eur_rate,
			rub_rate = EXCLUDED.rub_rate,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at;
	`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).
		ExecContext(ctx, query, er.EURRate, er.RUBRate, er.Source, er.UpdatedAt)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repo) AppendHistory(ctx context.Context, er *rate.ExchangeRate) error {
	const query = `
		INSERT INTO exchange_rate_history (eur_rate, rub_rate, source, created_at)
		VALUES ($1, $2, $3, $4);
	`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).
		ExecContext(ctx, query, er.EURRate, er.RUBRate, er.Source, er.UpdatedAt)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repo) ListHistory(ctx context.Context, limit int) ([]*rate.HistoryEntry, error) {
	const query = `
		SELECT id, eur_rate, rub_rate, source, created_at FROM exchange_rate_history
		ORDER BY created_at DESC, id DESC
		LIMIT $1;
	`

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	entries := make([]*rate.HistoryEntry, 0, limit)

	for rows.Next() {
		e := new(rate.HistoryEntry)
		err = rows.Scan(
			&e.ID,
			&e.EURRate,
			&e.RUBRate,
			&e.Source,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
