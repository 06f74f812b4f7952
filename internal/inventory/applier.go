package inventory

import (
	"context"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-ecommerce-saga/internal/kafka"
	"github.com/ariefcatur/go-ecommerce-saga/internal/obs"
	"github.com/ariefcatur/go-ecommerce-saga/internal/stock"
)

// Deduper records which messages were already applied.
type Deduper interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Mark(ctx context.Context, messageID string) error
}

type ApplierOption func(*StockApplier)

// WithDeduper skips messages whose id was already applied. Without it every delivery,
// including a redelivery, decrements stock again.
func WithDeduper(d Deduper) ApplierOption {
	return func(a *StockApplier) { a.dedup = d }
}

func WithMetrics(m *obs.Metrics) ApplierOption {
	return func(a *StockApplier) { a.metrics = m }
}

// StockApplier applies stock-change messages to the inventory. Handle plugs into the
// kafka consumer loop.
type StockApplier struct {
	store   Store
	dedup   Deduper
	logger  *zap.Logger
	metrics *obs.Metrics
}

func NewStockApplier(store Store, logger *zap.Logger, opts ...ApplierOption) *StockApplier {
	a := &StockApplier{store: store, logger: logger}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handle decodes a queue message and applies it. Malformed messages and unknown products
// are dropped (nil error, so the offset is committed); store failures are returned so the
// message is retried.
func (a *StockApplier) Handle(ctx context.Context, m kafkago.Message) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, kafkax.HeaderCarrier{Headers: &m.Headers})
	ctx, span := otel.Tracer("inventory/applier").Start(ctx, "inventory.ApplyStockChange",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	ev, err := stock.FromMessage(m)
	if err != nil {
		a.logger.Warn("dropping malformed stock-change message",
			zap.Error(err), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
		a.metrics.Dropped("malformed")
		return nil
	}
	return a.Apply(ctx, ev)
}

func (a *StockApplier) Apply(ctx context.Context, ev stock.ChangeEvent) error {
	log := a.logger.With(
		zap.String("message_id", ev.MessageID),
		zap.Int64("order_id", ev.OrderID),
		zap.Int64("product_id", ev.ProductID),
		zap.Int("delta", ev.QuantityDelta),
	)

	dedup := a.dedup != nil && ev.MessageID != ""
	if dedup {
		seen, err := a.dedup.Seen(ctx, ev.MessageID)
		if err != nil {
			return fmt.Errorf("dedup lookup %s: %w", ev.MessageID, err)
		}
		if seen {
			log.Info("skipping already applied stock change")
			a.metrics.Duplicate()
			return nil
		}
	}

	p, err := a.store.ApplyDelta(ctx, ev.ProductID, ev.QuantityDelta)
	if errors.Is(err, ErrProductNotFound) {
		log.Warn("dropping stock change for unknown product")
		a.metrics.Dropped("unknown_product")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply stock change to product %d: %w", ev.ProductID, err)
	}
	a.metrics.Applied()

	if p.Quantity < 0 {
		log.Warn("stock below zero after decrement", zap.Int("quantity", p.Quantity))
	} else {
		log.Info("stock updated", zap.Int("quantity", p.Quantity))
	}

	if dedup {
		// Returning an error here would re-apply the delta on retry.
		if err := a.dedup.Mark(ctx, ev.MessageID); err != nil {
			log.Error("mark message applied", zap.Error(err))
		}
	}
	return nil
}
