// Package notify delivers payment confirmations to customers out of band.
package notify

import (
	"context"

	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/shopspring/decimal"
)

// Message is a payment confirmation for one order.
type Message struct {
	Amount        decimal.Decimal
	To            string
	OrderNumber   string
	RecipientName string
	Currency      string
}

// Sink delivers a single message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// LogSink only logs messages. Used when no broker is configured.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(logger logger.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	s.logger.With(ctx,
		"order", msg.OrderNumber,
		"to", msg.To,
		"amount", msg.Amount.String(),
	).Info("payment confirmation (log only)")
	return nil
}
