package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// EventPaymentConfirmed is the event type consumed by the mail service.
const EventPaymentConfirmed = "payment.confirmed"

// ErrNoBrokers is returned when the broker list is empty.
var ErrNoBrokers = errors.New("no kafka brokers configured")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the wire format of a payment confirmation.
type Event struct {
	OccurredAt   time.Time       `json:"occurredAt"`
	Type         string          `json:"type"`
	OrderNumber  string          `json:"orderNumber"`
	Email        string          `json:"email"`
	CustomerName string          `json:"customerName"`
	Currency     string          `json:"currency"`
	Amount       decimal.Decimal `json:"amount"`
}

// KafkaSink publishes confirmations keyed by order number so that all
// events of one order land in the same partition.
type KafkaSink struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaSink creates a writer for topic on the comma separated brokers.
func NewKafkaSink(brokersCSV, topic string) (*KafkaSink, error) {
	brokers := ParseBrokers(brokersCSV)
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, errors.New("empty kafka topic")
	}

	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		now: time.Now,
	}, nil
}

func (s *KafkaSink) Send(ctx context.Context, msg Message) error {
	now := s.now().UTC()

	data, err := json.Marshal(Event{
		OccurredAt:   now,
		Type:         EventPaymentConfirmed,
		OrderNumber:  msg.OrderNumber,
		Email:        msg.To,
		CustomerName: msg.RecipientName,
		Currency:     msg.Currency,
		Amount:       msg.Amount,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.OrderNumber),
		Value: data,
		Time:  now,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", EventPaymentConfirmed, err)
	}

	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// ParseBrokers splits a comma separated list dropping empty entries.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
