package order

import (
	"errors"
	"fmt"
)

// Terminal workflow errors. Expected business failures and transport/infra
// failures are distinct sentinels because retry and SLA accounting treat
// them differently.
var (
	ErrProductNotFound         = errors.New("product not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrPaymentDeclined         = errors.New("payment declined")
	ErrPurchaseFailed          = errors.New("purchase failed")
	ErrDependencyCommunication = errors.New("dependency communication error")
	ErrDependencyUnavailable   = errors.New("dependency unavailable")
	ErrInventoryCheckFailed    = errors.New("inventory check failed")
	ErrPurchaseCompletion      = errors.New("purchase completion failed")
	ErrCancellationFailed      = errors.New("cancellation failed")
	ErrOrderNotFound           = errors.New("order not found")
	ErrAlreadyCancelled        = errors.New("order already cancelled")
	ErrAlreadyShipped          = errors.New("order already shipped")
	ErrInternal                = errors.New("internal error")
)

// InsufficientStockError carries the stock context surfaced to the caller.
// It unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested=%d, available=%d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Reason maps a terminal workflow error to the stable reason tag used on
// metrics and logs. A nil error maps to "success".
func Reason(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrPaymentDeclined):
		return "payment_declined"
	case errors.Is(err, ErrPurchaseFailed):
		return "purchase_failed"
	case errors.Is(err, ErrDependencyUnavailable):
		return "dependency_unavailable"
	case errors.Is(err, ErrDependencyCommunication):
		return "dependency_communication_error"
	case errors.Is(err, ErrInventoryCheckFailed):
		return "inventory_check_failed"
	case errors.Is(err, ErrPurchaseCompletion):
		return "purchase_completion_failed"
	case errors.Is(err, ErrCancellationFailed):
		return "cancellation_failed"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, ErrAlreadyShipped):
		return "already_shipped"
	default:
		return "internal_error"
	}
}
