package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/metrics"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/order"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/notify"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/google/uuid"
)

// ProviderStatus is a payment status as reported by the provider.
type ProviderStatus string

const (
	PAID      ProviderStatus = "PAID"
	CANCELLED ProviderStatus = "CANCELLED"
	EXPIRED   ProviderStatus = "EXPIRED"
)

// Target returns the order payment status the provider status maps to.
func (s ProviderStatus) Target() (order.PaymentStatus, bool) {
	switch s {
	case PAID:
		return order.PAID, true
	case CANCELLED:
		return order.CANCELLED, true
	case EXPIRED:
		return order.EXPIRED, true
	}
	return "", false
}

// Event is a validated webhook delivery.
type Event struct {
	PaymentID string
	Status    ProviderStatus
}

// Result describes what a delivery did to the order.
type Result struct {
	JobID       uuid.UUID
	OrderNumber string
	From        order.PaymentStatus
	To          order.PaymentStatus
	Found       bool
	Applied     bool
	Rejected    bool
}

// Notifier queues payment confirmations without waiting for delivery.
type Notifier interface {
	Enqueue(ctx context.Context, msg notify.Message) (uuid.UUID, error)
}

// TxManager runs fn in a single transaction.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     Repository
	trm      TxManager
	notifier Notifier
	logger   logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(
	repo Repository, trm TxManager, notifier Notifier, logger logger.Logger, metrics *metrics.Metrics,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if notifier == nil {
		return nil, errors.New("nil dependency: notifier")
	}
	return &Service{
		repo:     repo,
		trm:      trm,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// Reconcile applies ev to the order it refers to while holding the order
// row lock. An unknown payment id is not an error. A paid order never
// moves back to cancelled or expired.
//
// Every delivery that leaves the order paid queues one confirmation
// after commit; queueing failures do not affect the result.
func (s *Service) Reconcile(ctx context.Context, ev Event) (Result, error) {
	target, ok := ev.Status.Target()
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown payment status %q", errs.ErrValidation, ev.Status)
	}

	var (
		res Result
		o   *order.Order
	)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		res = Result{}

		var err error
		o, err = s.repo.FindByPaymentIDForUpdate(ctx, ev.PaymentID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("find order by payment id: %w", err)
		}

		res.Found = true
		res.OrderNumber = o.Number
		res.From = o.PaymentStatus
		res.To = target

		if o.PaymentStatus == order.PAID && target != order.PAID {
			res.Rejected = true
			res.To = o.PaymentStatus
			return nil
		}

		var paidAt *time.Time
		if target == order.PAID {
			now := s.now().UTC()
			paidAt = &now
		}

		if err = s.repo.UpdatePaymentStatus(ctx, o.ID, target, paidAt); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}

		o.PaymentStatus = target
		if o.PaidAt == nil {
			o.PaidAt = paidAt
		}
		res.Applied = true

		return nil
	})
	if err != nil {
		s.metrics.WebhookEvent("error")
		return Result{}, err
	}

	l := s.logger.With(ctx, "payment_id", ev.PaymentID, "status", string(ev.Status), "order", res.OrderNumber)

	switch {
	case !res.Found:
		s.metrics.WebhookEvent("unknown_order")
		l.Info("payment webhook for unknown order acknowledged")
		return res, nil

	case res.Rejected:
		s.metrics.WebhookEvent("rejected")
		l.Warn("payment webhook rejected: order is already paid")
		return res, nil
	}

	s.metrics.WebhookEvent("applied")
	l.Infof("payment status applied: %s -> %s", res.From, res.To)

	if res.To == order.PAID {
		res.JobID = s.notifyPaid(ctx, o)
	}

	return res, nil
}

func (s *Service) notifyPaid(ctx context.Context, o *order.Order) uuid.UUID {
	id, err := s.notifier.Enqueue(ctx, notify.Message{
		Amount:        o.TotalAmount,
		To:            o.Email,
		OrderNumber:   o.Number,
		RecipientName: o.CustomerName,
		Currency:      o.Currency,
	})
	if err != nil {
		s.logger.With(ctx, "order", o.Number).Errorf("queue payment confirmation: %s", err)
		return uuid.Nil
	}

	return id
}
