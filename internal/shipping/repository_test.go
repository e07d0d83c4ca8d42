package shipping

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l, _ := logger.NewForTest()
	repo, err := NewRepository(db, trmsql.DefaultCtxGetter, l)
	require.NoError(t, err)

	return repo, mock
}

func TestRepoList(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, weight_kg, price_rub FROM shipping_rates ORDER BY weight_kg ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "weight_kg", "price_rub"}).
			AddRow(1, "0.1", 300).
			AddRow(2, "0.2", 320))

	rates, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.True(t, rates[1].WeightKg.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, int64(320), rates[1].PriceRub)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoInsertUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO shipping_rates").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.Insert(context.Background(), DefaultTable()[:1])
	assert.ErrorIs(t, err, errs.ErrDataConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

// Delete and inserts share one transaction.
func TestReplaceInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l, _ := logger.NewForTest()
	repo, err := NewRepository(db, trmsql.DefaultCtxGetter, l)
	require.NoError(t, err)

	s, err := NewService(repo, manager.Must(trmsql.NewDefaultFactory(db)), l)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM shipping_rates").WillReturnResult(sqlmock.NewResult(0, 15))
	mock.ExpectQuery("INSERT INTO shipping_rates").
		WithArgs(sqlmock.AnyArg(), 250).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(16))
	mock.ExpectQuery("INSERT INTO shipping_rates").
		WithArgs(sqlmock.AnyArg(), 500).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	mock.ExpectRollback()

	_, err = s.Replace(context.Background(), []Input{
		{WeightKg: ptr(0.5), PriceRub: ptr(250.0)},
		{WeightKg: ptr(1.0), PriceRub: ptr(500.0)},
	})
	assert.ErrorIs(t, err, errs.ErrDataConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}
