package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-ecommerce-saga/internal/obs"
	"github.com/ariefcatur/go-ecommerce-saga/internal/stock"
)

type Option func(*Orchestrator)

func WithMetrics(m *obs.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithPublishTimeout bounds each post-commit publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.publishTimeout = d }
}

// Orchestrator places orders: verify every line against the inventory, commit the order,
// then publish one stock decrement per line.
//
// No lock spans the three steps. Two concurrent orders for the same product can both pass
// verification before either decrement lands, so stock is only verified at check time and
// converges later.
type Orchestrator struct {
	verifier       StockVerifier
	repo           Repository
	publisher      Publisher
	logger         *zap.Logger
	metrics        *obs.Metrics
	tracer         trace.Tracer
	now            func() time.Time
	newID          func() string
	publishTimeout time.Duration
}

func NewOrchestrator(v StockVerifier, repo Repository, p Publisher, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		verifier:       v,
		repo:           repo,
		publisher:      p,
		logger:         logger,
		tracer:         otel.Tracer("orders/orchestrator"),
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
		publishTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PlaceOrder returns the stored order, or a *RejectedError / ErrInvalidOrder before anything
// is written. Any other error means the commit itself failed.
func (o *Orchestrator) PlaceOrder(ctx context.Context, order Order) (Order, error) {
	ctx, span := o.tracer.Start(ctx, "orders.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("order.lines", len(order.Items)))

	if err := order.Validate(); err != nil {
		o.metrics.OrderRejected("invalid")
		span.SetStatus(codes.Error, err.Error())
		return Order{}, err
	}

	for i, line := range order.Items {
		if err := o.verifyLine(ctx, i, line); err != nil {
			var rej *RejectedError
			if errors.As(err, &rej) {
				o.metrics.OrderRejected(rej.reason())
			}
			o.logger.Info("order rejected", zap.String("customer", order.Customer), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "order rejected")
			return Order{}, err
		}
	}

	order.ID = 0
	order.PlacedAt = o.now()
	events := order.StockChanges(o.newID)
	if err := o.repo.Create(ctx, &order, events); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order")
		return Order{}, fmt.Errorf("persist order: %w", err)
	}
	o.metrics.OrderAccepted()
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	o.logger.Info("order accepted", zap.Int64("order_id", order.ID), zap.String("customer", order.Customer))

	o.publish(ctx, events)
	return order, nil
}

func (o *Orchestrator) verifyLine(ctx context.Context, idx int, line OrderLine) error {
	st, err := o.verifier.Verify(ctx, line.ProductID)
	if err != nil {
		return &RejectedError{Kind: ErrProductUnavailable, Line: idx + 1, ProductID: line.ProductID, Requested: line.Quantity, Cause: err}
	}
	if st.Quantity < line.Quantity {
		return &RejectedError{
			Kind:        ErrInsufficientStock,
			Line:        idx + 1,
			ProductID:   line.ProductID,
			ProductName: st.Name,
			Requested:   line.Quantity,
			Available:   st.Quantity,
		}
	}
	return nil
}

// publish sends the committed order's events in line order. Failures leave the outbox entry
// pending for the dispatcher and never undo the order. Once a product's event fails, later
// events for that product are left to the dispatcher too, so they are not overtaken.
func (o *Orchestrator) publish(ctx context.Context, events []stock.ChangeEvent) {
	ctx, span := o.tracer.Start(ctx, "orders.PublishStockChanges")
	defer span.End()

	// The order is committed; a caller hanging up must not abort the notifications.
	ctx = context.WithoutCancel(ctx)
	blocked := map[int64]bool{}
	for _, ev := range events {
		log := o.logger.With(zap.Int64("order_id", ev.OrderID), zap.Int64("product_id", ev.ProductID), zap.String("message_id", ev.MessageID))
		if blocked[ev.ProductID] {
			log.Warn("stock change deferred to outbox")
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, o.publishTimeout)
		err := o.publisher.Publish(pctx, ev)
		cancel()
		if err != nil {
			blocked[ev.ProductID] = true
			o.metrics.PublishFailed()
			span.RecordError(err)
			log.Error("publish stock change", zap.Error(err))
			if merr := o.repo.MarkFailed(ctx, ev.MessageID, err); merr != nil {
				log.Warn("record publish failure", zap.Error(merr))
			}
			continue
		}
		o.metrics.Published()
		if err := o.repo.MarkPublished(ctx, ev.MessageID); err != nil {
			log.Warn("mark stock change published", zap.Error(err))
		}
	}
}
