// Package order holds the order domain model and the orchestration workflow
// for creating, cancelling and reading orders.
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusCreated only appears in status history, never as current status.
	StatusCreated   Status = "created"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusShipped   Status = "shipped"
)

// StatusChange is one entry in an order's append-only status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Order is the record created once per successful workflow completion and
// owned exclusively by the Store. Status, UpdatedAt and StatusHistory are
// mutated only by cancellation; orders are never deleted.
type Order struct {
	ID                string          `json:"order_id"`
	UserID            string          `json:"user_id"`
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Quantity          int             `json:"quantity"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            Status          `json:"status"`
	StatusHistory     []StatusChange  `json:"status_history"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
}

// Clone returns a deep copy so callers can never share history slices with
// the store's record.
func (o Order) Clone() Order {
	clone := o
	clone.StatusHistory = make([]StatusChange, len(o.StatusHistory))
	copy(clone.StatusHistory, o.StatusHistory)

	return clone
}
