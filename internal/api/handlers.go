package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"github.com/jsalvarredy/grafana-otel-demo/internal/order"
	"github.com/shopspring/decimal"
)

// OrderHandler exposes the order workflows over HTTP.
type OrderHandler struct {
	service *order.Service
	logger  log.Logger
}

// NewOrderHandler creates the HTTP handler for the order routes.
func NewOrderHandler(service *order.Service, logger log.Logger) *OrderHandler {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &OrderHandler{service: service, logger: logger}
}

type createOrderRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"user_id"`
}

type orderResponse struct {
	Order order.Order `json:"order"`
}

// CreateOrder handles POST /api/orders.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	if req.ProductID == "" {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "product_id is required"})
	}

	ord, err := h.service.CreateOrder(c.UserContext(), order.CreateOrderInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UserID:    req.UserID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(orderResponse{Order: ord})
}

// GetOrder handles GET /api/orders/:id.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	ord, err := h.service.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(orderResponse{Order: ord})
}

// GetUserOrders handles GET /api/users/:id/orders.
func (h *OrderHandler) GetUserOrders(c *fiber.Ctx) error {
	view, err := h.service.GetUserOrders(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(view)
}

type cancelOrderResponse struct {
	OrderID      string          `json:"order_id"`
	Status       order.Status    `json:"status"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

// CancelOrder handles POST /api/orders/:id/cancel.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	refund, err := h.service.CancelOrder(c.UserContext(), orderID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(cancelOrderResponse{
		OrderID:      orderID,
		Status:       order.StatusCancelled,
		RefundAmount: refund,
	})
}

// TrackOrder handles GET /api/orders/:id/tracking.
func (h *OrderHandler) TrackOrder(c *fiber.Ctx) error {
	info, err := h.service.TrackOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(info)
}
