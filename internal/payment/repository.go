package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/order"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
)

type Repository interface {
	// FindByPaymentIDForUpdate locks the order row until the surrounding
	// transaction ends.
	FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*order.Order, error)
	// UpdatePaymentStatus keeps the first paid_at once it is set.
	UpdatePaymentStatus(ctx context.Context, id int, status order.PaymentStatus, paidAt *time.Time) error
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

func (r *Repo) FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*order.Order, error) {
	const query = `
		SELECT
			id, number, status, payment_status, payment_id, user_id, total_amount,
			currency, email, customer_name, created_at, paid_at
		FROM orders
		WHERE payment_id = $1
		FOR UPDATE`

	var o order.Order

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, paymentID).
		Scan(
			&o.ID, &o.Number, &o.Status, &o.PaymentStatus, &o.PaymentID, &o.UserID, &o.TotalAmount,
			&o.Currency, &o.Email, &o.CustomerName, &o.CreatedAt, &o.PaidAt,
		)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order with payment id %s", errs.ErrNotFound, paymentID)
		}
		return nil, err
	}

	return &o, nil
}

func (r *Repo) UpdatePaymentStatus(ctx context.Context, id int, status order.PaymentStatus, paidAt *time.Time) error {
	const query = `
		UPDATE orders
		SET payment_status = $2, paid_at = COALESCE(paid_at, $3)
		WHERE id = $1`

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id, status, paidAt)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: order %d", errs.ErrNotFound, id)
	}

	return nil
}
