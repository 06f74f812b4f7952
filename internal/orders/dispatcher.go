package orders

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-ecommerce-saga/internal/obs"
)

// Dispatcher republishes outbox entries the orchestrator could not deliver.
// Entries younger than grace are left alone while the orchestrator may still be publishing them.
type Dispatcher struct {
	outbox    Outbox
	publisher Publisher
	logger    *zap.Logger
	metrics   *obs.Metrics
	interval  time.Duration
	grace     time.Duration
	batch     int
	now       func() time.Time
}

func NewDispatcher(outbox Outbox, p Publisher, logger *zap.Logger, interval, grace time.Duration, batch int, m *obs.Metrics) *Dispatcher {
	if batch <= 0 {
		batch = 100
	}
	return &Dispatcher{
		outbox:    outbox,
		publisher: p,
		logger:    logger,
		metrics:   m,
		interval:  interval,
		grace:     grace,
		batch:     batch,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	d.logger.Info("outbox dispatcher started", zap.Duration("interval", d.interval), zap.Duration("grace", d.grace))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-t.C:
			if _, err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("drain outbox", zap.Error(err))
			}
		}
	}
}

// DrainOnce publishes one batch of pending entries, oldest first. After a failure for a
// product, that product's remaining entries wait for the next round.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	entries, err := d.outbox.Pending(ctx, d.now().Add(-d.grace), d.batch)
	if err != nil {
		return 0, err
	}

	published := 0
	blocked := map[int64]bool{}
	for _, e := range entries {
		ev := e.Event
		if blocked[ev.ProductID] {
			continue
		}
		log := d.logger.With(zap.String("message_id", ev.MessageID), zap.Int64("order_id", ev.OrderID),
			zap.Int64("product_id", ev.ProductID), zap.Int("attempts", e.Attempts+1))

		if err := d.publisher.Publish(ctx, ev); err != nil {
			blocked[ev.ProductID] = true
			d.metrics.PublishFailed()
			log.Warn("republish stock change", zap.Error(err))
			if err := d.outbox.MarkFailed(ctx, ev.MessageID, err); err != nil {
				return published, err
			}
			continue
		}
		d.metrics.Published()
		if err := d.outbox.MarkPublished(ctx, ev.MessageID); err != nil {
			return published, err
		}
		published++
		log.Info("stock change republished")
	}
	return published, nil
}
