package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jsalvarredy/grafana-otel-demo/internal/clock"
	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"github.com/jsalvarredy/grafana-otel-demo/internal/products"
	"github.com/jsalvarredy/grafana-otel-demo/internal/retry"
	"github.com/jsalvarredy/grafana-otel-demo/internal/session"
	"github.com/jsalvarredy/grafana-otel-demo/internal/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultPaymentDeclineProbability models payment declines.
	DefaultPaymentDeclineProbability = 0.03
	// DefaultCancellationFailureProbability models cancellation work failing.
	DefaultCancellationFailureProbability = 0.02
	// DefaultSLAThreshold is the processing-time budget for one workflow.
	DefaultSLAThreshold = 2 * time.Second

	deliveryEstimateOffset = 5 * 24 * time.Hour
)

// ProductsAPI is the slice of the products client the workflow consumes.
type ProductsAPI interface {
	GetProduct(ctx context.Context, productID string) (products.Product, error)
	GetInventory(ctx context.Context, productID string) (products.Inventory, error)
	CompletePurchase(ctx context.Context, productID string, quantity int) (products.PurchaseConfirmation, error)
}

// ServiceConfig wires the orchestrator's collaborators. Zero-value optional
// fields fall back to sane defaults.
type ServiceConfig struct {
	Store    *Store
	Known    *KnownUsers
	Sessions *session.Tracker
	Products ProductsAPI
	Retrier  *retry.Executor
	Metrics  *telemetry.MetricsFactory
	Tracer   trace.Tracer
	Logger   log.Logger
	Clock    clock.Clock

	PaymentDecider      Decider
	CancellationDecider Decider

	PaymentDeclineProbability      float64
	CancellationFailureProbability float64
	SLAThreshold                   time.Duration

	// WorkSimulator models load-aware payment latency from the number of
	// active sessions. Tests inject a no-op.
	WorkSimulator func(ctx context.Context, activeSessions int)
}

// Service drives the order workflows: a linear create state machine with
// branch-and-exit on failure at each gate, plus cancel and read paths.
type Service struct {
	store    *Store
	known    *KnownUsers
	sessions *session.Tracker
	products ProductsAPI
	retrier  *retry.Executor
	metrics  *telemetry.MetricsFactory
	tracer   trace.Tracer
	logger   log.Logger
	clock    clock.Clock

	payment      Decider
	cancellation Decider

	paymentDeclineProbability      float64
	cancellationFailureProbability float64
	slaThreshold                   time.Duration

	simulateWork func(ctx context.Context, activeSessions int)
}

// NewService creates the order orchestrator.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}

	if cfg.Known == nil {
		cfg.Known = NewKnownUsers()
	}

	if cfg.Sessions == nil {
		cfg.Sessions = session.NewTracker(session.DefaultIdleTimeout, cfg.Clock)
	}

	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNopFactory()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = tracenoop.NewTracerProvider().Tracer("order")
	}

	if cfg.Logger == nil {
		cfg.Logger = &log.NoneLogger{}
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}

	if cfg.Retrier == nil {
		cfg.Retrier = retry.NewExecutor(cfg.Metrics, cfg.Logger)
	}

	if cfg.PaymentDecider == nil {
		cfg.PaymentDecider = NewDecider()
	}

	if cfg.CancellationDecider == nil {
		cfg.CancellationDecider = NewDecider()
	}

	if cfg.PaymentDeclineProbability == 0 {
		cfg.PaymentDeclineProbability = DefaultPaymentDeclineProbability
	}

	if cfg.CancellationFailureProbability == 0 {
		cfg.CancellationFailureProbability = DefaultCancellationFailureProbability
	}

	if cfg.SLAThreshold == 0 {
		cfg.SLAThreshold = DefaultSLAThreshold
	}

	if cfg.WorkSimulator == nil {
		cfg.WorkSimulator = defaultWorkSimulator
	}

	return &Service{
		store:                          cfg.Store,
		known:                          cfg.Known,
		sessions:                       cfg.Sessions,
		products:                       cfg.Products,
		retrier:                        cfg.Retrier,
		metrics:                        cfg.Metrics,
		tracer:                         cfg.Tracer,
		logger:                         cfg.Logger,
		clock:                          cfg.Clock,
		payment:                        cfg.PaymentDecider,
		cancellation:                   cfg.CancellationDecider,
		paymentDeclineProbability:      cfg.PaymentDeclineProbability,
		cancellationFailureProbability: cfg.CancellationFailureProbability,
		slaThreshold:                   cfg.SLAThreshold,
		simulateWork:                   cfg.WorkSimulator,
	}
}

// defaultWorkSimulator sleeps a small delay that grows with concurrent load.
func defaultWorkSimulator(ctx context.Context, activeSessions int) {
	delay := 20*time.Millisecond + time.Duration(activeSessions)*2*time.Millisecond
	if delay > 250*time.Millisecond {
		delay = 250 * time.Millisecond
	}

	_ = retry.SleepWithContext(ctx, delay)
}

// CreateOrderInput is the parsed create-order request. Quantity defaults to 1
// and UserID is synthesized when absent.
type CreateOrderInput struct {
	ProductID string
	Quantity  int
	UserID    string
}

// CreateOrder drives one request through fetch -> validate -> pay -> purchase
// -> commit. Steps execute strictly in order; no step is attempted once a
// prior step has failed. Processing-time and SLA accounting fire on every
// exit path, including panics, which surface as ErrInternal.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (ord Order, err error) {
	start := s.clock.Now()

	ctx, span := s.tracer.Start(ctx, "create-order")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Order workflow panic: %v", r)

			err = ErrInternal
		}

		s.recordWorkflowOutcome(ctx, span, start, err)
	}()

	// Step 1: parse defaults and classify the customer before any
	// downstream call. Classification sticks even if the order later fails.
	if in.Quantity <= 0 {
		in.Quantity = 1
	}

	userID := in.UserID
	if userID == "" {
		userID = "guest-" + uuid.NewString()[:8]
	}

	customerType := s.classifyCustomer(ctx, userID)

	span.SetAttributes(
		attribute.String("order.product_id", in.ProductID),
		attribute.Int("order.quantity", in.Quantity),
		attribute.String("order.user_id", userID),
		attribute.String("order.customer_type", customerType),
	)

	// Step 2: fetch product data.
	product, err := s.fetchProduct(ctx, in.ProductID)
	if err != nil {
		return Order{}, err
	}

	span.SetAttributes(attribute.String("order.product_name", product.Name))

	totalAmount := product.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))

	// Step 3: validate inventory.
	if err = s.checkInventory(ctx, in, totalAmount); err != nil {
		return Order{}, err
	}

	// Step 4: simulate payment.
	if err = s.processPayment(ctx, totalAmount); err != nil {
		return Order{}, err
	}

	// Step 5: commit the purchase downstream.
	if err = s.completePurchase(ctx, in, totalAmount); err != nil {
		return Order{}, err
	}

	// Step 6: commit. The single point of truth creation; nothing before
	// this line has touched the store.
	now := s.clock.Now()

	ord = Order{
		ID:           s.store.NextID(),
		UserID:       userID,
		ProductID:    in.ProductID,
		ProductName:  product.Name,
		Quantity:     in.Quantity,
		PricePerUnit: product.Price,
		TotalAmount:  totalAmount,
		Status:       StatusConfirmed,
		StatusHistory: []StatusChange{
			{Status: StatusCreated, Timestamp: now},
			{Status: StatusConfirmed, Timestamp: now},
		},
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDelivery: now.Add(deliveryEstimateOffset),
	}

	s.store.Insert(ord)
	s.sessions.Touch(userID)

	s.recordOrderCreated(ctx, ord)

	telemetry.HandleSpanEvent(span, "order-confirmed", attribute.String("order.id", ord.ID))
	s.logger.Infof("Order %s confirmed for user %s: %s x%d = %s",
		ord.ID, userID, in.ProductID, in.Quantity, totalAmount.StringFixed(2))

	return ord, nil
}

func (s *Service) classifyCustomer(ctx context.Context, userID string) string {
	customerType := "new"
	metricDef := telemetry.MetricNewCustomers

	if s.known.MarkSeen(userID) {
		customerType = "returning"
		metricDef = telemetry.MetricReturningCustomers
	}

	if counter, err := s.metrics.Counter(metricDef); err == nil {
		_ = counter.AddOne(ctx)
	}

	return customerType
}

func (s *Service) fetchProduct(ctx context.Context, productID string) (products.Product, error) {
	ctx, span := s.tracer.Start(ctx, "fetch-product")
	defer span.End()

	var product products.Product

	err := s.retrier.Do(ctx, products.DependencyName, "get_product", func() error {
		p, callErr := s.products.GetProduct(ctx, productID)
		if callErr != nil {
			if errors.Is(callErr, products.ErrNotFound) || errors.Is(callErr, products.ErrUnavailable) {
				return retry.Permanent(callErr)
			}

			return callErr
		}

		product = p

		return nil
	})
	if err != nil {
		telemetry.HandleSpanError(span, "fetch product failed", err)

		switch {
		case errors.Is(err, products.ErrNotFound):
			return products.Product{}, ErrProductNotFound
		case errors.Is(err, products.ErrUnavailable):
			return products.Product{}, ErrDependencyUnavailable
		default:
			return products.Product{}, ErrDependencyCommunication
		}
	}

	return product, nil
}

func (s *Service) checkInventory(ctx context.Context, in CreateOrderInput, totalAmount decimal.Decimal) error {
	ctx, span := s.tracer.Start(ctx, "validate-inventory")
	defer span.End()

	var inventory products.Inventory

	err := s.retrier.Do(ctx, products.DependencyName, "get_inventory", func() error {
		inv, callErr := s.products.GetInventory(ctx, in.ProductID)
		if callErr != nil {
			if errors.Is(callErr, products.ErrUnavailable) {
				return retry.Permanent(callErr)
			}

			return callErr
		}

		inventory = inv

		return nil
	})
	if err != nil {
		telemetry.HandleSpanError(span, "inventory check failed", err)

		if errors.Is(err, products.ErrUnavailable) {
			return ErrDependencyUnavailable
		}

		return ErrInventoryCheckFailed
	}

	span.SetAttributes(attribute.Int("inventory.stock", inventory.Stock))

	if inventory.Stock < in.Quantity {
		stockErr := &InsufficientStockError{
			ProductID: in.ProductID,
			Requested: in.Quantity,
			Available: inventory.Stock,
		}

		telemetry.HandleSpanBusinessErrorEvent(span, "insufficient-stock", stockErr)
		s.recordLostRevenue(ctx, "insufficient_stock", totalAmount)

		return stockErr
	}

	return nil
}

func (s *Service) processPayment(ctx context.Context, totalAmount decimal.Decimal) error {
	ctx, paySpan := s.tracer.Start(ctx, "process-payment")
	defer paySpan.End()

	s.simulateWork(ctx, s.sessions.ActiveCount())

	if s.payment.Decide(s.paymentDeclineProbability) {
		telemetry.HandleSpanBusinessErrorEvent(paySpan, "payment-declined", ErrPaymentDeclined)
		s.recordLostRevenue(ctx, "payment_declined", totalAmount)

		return ErrPaymentDeclined
	}

	paySpan.SetAttributes(attribute.Float64("payment.amount", totalAmount.InexactFloat64()))

	return nil
}

func (s *Service) completePurchase(ctx context.Context, in CreateOrderInput, totalAmount decimal.Decimal) error {
	ctx, span := s.tracer.Start(ctx, "complete-purchase")
	defer span.End()

	err := s.retrier.Do(ctx, products.DependencyName, "complete_purchase", func() error {
		_, callErr := s.products.CompletePurchase(ctx, in.ProductID, in.Quantity)
		if callErr != nil {
			if errors.Is(callErr, products.ErrPurchaseRejected) || errors.Is(callErr, products.ErrUnavailable) {
				return retry.Permanent(callErr)
			}

			return callErr
		}

		return nil
	})
	if err != nil {
		telemetry.HandleSpanError(span, "purchase completion failed", err)
		s.recordLostRevenue(ctx, "purchase_failed", totalAmount)

		switch {
		case errors.Is(err, products.ErrPurchaseRejected):
			return ErrPurchaseFailed
		case errors.Is(err, products.ErrUnavailable):
			return ErrDependencyUnavailable
		default:
			return ErrPurchaseCompletion
		}
	}

	return nil
}

// recordWorkflowOutcome is the workflow's "finally" accounting. It fires on
// every exit path with the outcome and reason tags.
func (s *Service) recordWorkflowOutcome(ctx context.Context, span trace.Span, start time.Time, err error) {
	elapsed := s.clock.Now().Sub(start)
	reason := Reason(err)

	outcome := "success"
	if err != nil {
		outcome = "failure"

		telemetry.HandleSpanError(span, "order workflow failed", err)
		s.logger.Warnf("Order workflow failed (%s) after %s: %v", reason, elapsed, err)
	}

	if histogram, herr := s.metrics.Histogram(telemetry.MetricOrderProcessingTime); herr == nil {
		_ = histogram.WithLabels(map[string]string{
			"outcome": outcome,
			"reason":  reason,
		}).Record(ctx, elapsed.Seconds())
	}

	if elapsed > s.slaThreshold {
		if counter, cerr := s.metrics.Counter(telemetry.MetricSLAViolations); cerr == nil {
			_ = counter.WithLabels(map[string]string{"reason": reason}).AddOne(ctx)
		}

		s.logger.Warnf("SLA violation: order workflow took %s (threshold %s, reason %s)",
			elapsed, s.slaThreshold, reason)
	}
}

func (s *Service) recordOrderCreated(ctx context.Context, ord Order) {
	labels := map[string]string{"product_id": ord.ProductID}

	if counter, err := s.metrics.Counter(telemetry.MetricOrdersCreated); err == nil {
		_ = counter.WithLabels(labels).AddOne(ctx)
	}

	total := ord.TotalAmount.InexactFloat64()

	if histogram, err := s.metrics.Histogram(telemetry.MetricOrdersValue); err == nil {
		_ = histogram.WithLabels(labels).Record(ctx, total)
	}

	if histogram, err := s.metrics.Histogram(telemetry.MetricOrderRevenue); err == nil {
		_ = histogram.WithLabels(labels).Record(ctx, total)
	}
}

func (s *Service) recordLostRevenue(ctx context.Context, reason string, amount decimal.Decimal) {
	counter, err := s.metrics.FloatCounter(telemetry.MetricFailedTransactionRevenue)
	if err != nil {
		return
	}

	_ = counter.WithLabels(map[string]string{"reason": reason}).Add(ctx, amount.InexactFloat64())
}

// CancelOrder transitions an order to cancelled and returns the refund
// amount. Shipped and already-cancelled orders are rejected; a small random
// failure probability models cancellation work failing, with no state
// mutation in that case.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (decimal.Decimal, error) {
	ctx, span := s.tracer.Start(ctx, "cancel-order")
	defer span.End()

	span.SetAttributes(attribute.String("order.id", orderID))

	var from Status

	updated, err := s.store.Update(orderID, func(o *Order) error {
		switch o.Status {
		case StatusCancelled:
			return ErrAlreadyCancelled
		case StatusShipped:
			return ErrAlreadyShipped
		}

		if s.cancellation.Decide(s.cancellationFailureProbability) {
			return ErrCancellationFailed
		}

		from = o.Status
		now := s.clock.Now()

		o.Status = StatusCancelled
		o.UpdatedAt = now
		o.StatusHistory = append(o.StatusHistory, StatusChange{Status: StatusCancelled, Timestamp: now})

		return nil
	})
	if err != nil {
		telemetry.HandleSpanBusinessErrorEvent(span, "cancellation-rejected", err)

		return decimal.Zero, err
	}

	s.recordCancellation(ctx, updated, from)

	telemetry.HandleSpanEvent(span, "order-cancelled")
	s.logger.Infof("Order %s cancelled, refunding %s", orderID, updated.TotalAmount.StringFixed(2))

	return updated.TotalAmount, nil
}

func (s *Service) recordCancellation(ctx context.Context, ord Order, from Status) {
	if counter, err := s.metrics.Counter(telemetry.MetricOrderCancellations); err == nil {
		_ = counter.AddOne(ctx)
	}

	if histogram, err := s.metrics.Histogram(telemetry.MetricCancellationValue); err == nil {
		_ = histogram.Record(ctx, ord.TotalAmount.InexactFloat64())
	}

	if counter, err := s.metrics.Counter(telemetry.MetricOrderStatusChanges); err == nil {
		_ = counter.WithLabels(map[string]string{
			"from": string(from),
			"to":   string(StatusCancelled),
		}).AddOne(ctx)
	}
}

// GetOrder returns one order by id.
func (s *Service) GetOrder(ctx context.Context, orderID string) (Order, error) {
	_, span := s.tracer.Start(ctx, "get-order")
	defer span.End()

	o, ok := s.store.Get(orderID)
	if !ok {
		return Order{}, ErrOrderNotFound
	}

	return o, nil
}

// UserOrdersView is the enriched user-orders listing.
type UserOrdersView struct {
	UserID     string          `json:"user_id"`
	Orders     []Order         `json:"orders"`
	TotalSpend decimal.Decimal `json:"total_spend"`
}

// GetUserOrders lists a user's orders with aggregate spend. An unknown user
// yields an empty view, not an error.
func (s *Service) GetUserOrders(ctx context.Context, userID string) (UserOrdersView, error) {
	ctx, span := s.tracer.Start(ctx, "get-user-orders")
	defer span.End()

	orders := s.store.ListByUser(userID)

	totalSpend := decimal.Zero
	for _, o := range orders {
		if o.Status != StatusCancelled {
			totalSpend = totalSpend.Add(o.TotalAmount)
		}
	}

	if histogram, err := s.metrics.Histogram(telemetry.MetricUserOrderCount); err == nil {
		_ = histogram.Record(ctx, float64(len(orders)))
	}

	return UserOrdersView{
		UserID:     userID,
		Orders:     orders,
		TotalSpend: totalSpend,
	}, nil
}

// TrackingInfo is the synthesized tracking view for one order.
type TrackingInfo struct {
	OrderID           string       `json:"order_id"`
	TrackingNumber    string       `json:"tracking_number"`
	Status            Status       `json:"status"`
	Carrier           string       `json:"carrier"`
	EstimatedDelivery time.Time    `json:"estimated_delivery"`
	Checkpoints       []Checkpoint `json:"checkpoints"`
}

// Checkpoint is one entry in a tracking timeline, derived from the order's
// status history.
type Checkpoint struct {
	Status    Status    `json:"status"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackOrder returns tracking details for one order. The tracking number is
// derived from the order id.
func (s *Service) TrackOrder(ctx context.Context, orderID string) (TrackingInfo, error) {
	_, span := s.tracer.Start(ctx, "track-order")
	defer span.End()

	o, ok := s.store.Get(orderID)
	if !ok {
		return TrackingInfo{}, ErrOrderNotFound
	}

	checkpoints := make([]Checkpoint, 0, len(o.StatusHistory))
	for _, change := range o.StatusHistory {
		checkpoints = append(checkpoints, Checkpoint{
			Status:    change.Status,
			Location:  "fulfillment-center",
			Timestamp: change.Timestamp,
		})
	}

	return TrackingInfo{
		OrderID:           o.ID,
		TrackingNumber:    "TRK-" + strings.TrimPrefix(o.ID, "ORD-"),
		Status:            o.Status,
		Carrier:           "demo-express",
		EstimatedDelivery: o.EstimatedDelivery,
		Checkpoints:       checkpoints,
	}, nil
}
