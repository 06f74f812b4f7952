package orders

import (
	"context"

	"go.opentelemetry.io/otel"

	kafkax "github.com/ariefcatur/go-ecommerce-saga/internal/kafka"
	"github.com/ariefcatur/go-ecommerce-saga/internal/stock"
)

// Publisher hands a stock change to the queue. A nil error means the queue acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, ev stock.ChangeEvent) error
}

type KafkaPublisher struct {
	producer *kafkax.Producer
}

func NewKafkaPublisher(p *kafkax.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev stock.ChangeEvent) error {
	msg := stock.ToMessage(ev)
	otel.GetTextMapPropagator().Inject(ctx, kafkax.HeaderCarrier{Headers: &msg.Headers})
	return p.producer.Publish(ctx, msg)
}
