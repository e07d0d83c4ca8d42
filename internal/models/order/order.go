package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PENDING   PaymentStatus = "pending"
	PAID      PaymentStatus = "paid"
	CANCELLED PaymentStatus = "cancelled"
	EXPIRED   PaymentStatus = "expired"
)

// Order is owned by the order subsystem. TotalAmount is a snapshot
// made at creation time and never recomputed.
type Order struct {
	CreatedAt     time.Time
	PaidAt        *time.Time
	PaymentID     *string
	UserID        *int
	TotalAmount   decimal.Decimal
	Number        string
	Status        string
	PaymentStatus PaymentStatus
	Currency      string
	Email         string
	CustomerName  string
	Items         []Item
	ID            int
}

// Item is an immutable order line.
type Item struct {
	UnitPrice         decimal.Decimal
	OriginalUnitPrice decimal.Decimal
	ProductID         string
	Quantity          int
}
