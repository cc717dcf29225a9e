package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jsalvarredy/grafana-otel-demo/internal/order"
)

// errorResponse is the JSON error envelope. Details carries extra context
// such as requested/available quantities for stock failures.
type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// respondError maps domain errors onto HTTP statuses and writes the error
// envelope. Unknown errors are masked as a generic internal error.
func respondError(c *fiber.Ctx, err error) error {
	var stockErr *order.InsufficientStockError
	if errors.As(err, &stockErr) {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{
			Error: stockErr.Error(),
			Details: map[string]any{
				"product_id": stockErr.ProductID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			},
		})
	}

	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, order.ErrProductNotFound), errors.Is(err, order.ErrOrderNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, order.ErrPaymentDeclined):
		status = http.StatusPaymentRequired
		message = err.Error()
	case errors.Is(err, order.ErrAlreadyCancelled),
		errors.Is(err, order.ErrAlreadyShipped),
		errors.Is(err, order.ErrPurchaseFailed):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, order.ErrDependencyUnavailable),
		errors.Is(err, order.ErrDependencyCommunication),
		errors.Is(err, order.ErrInventoryCheckFailed),
		errors.Is(err, order.ErrPurchaseCompletion):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, order.ErrCancellationFailed):
		status = http.StatusInternalServerError
		message = err.Error()
	}

	return c.Status(status).JSON(errorResponse{Error: message})
}
