package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes synchronously: Publish returns only once every replica acked,
// so callers can tell an accepted message from a lost one.
type Producer struct {
	w Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

func NewProducerWithWriter(w Writer) *Producer { return &Producer{w: w} }

func (p *Producer) Publish(ctx context.Context, msgs ...kafka.Message) error {
	now := time.Now()
	for i := range msgs {
		if msgs[i].Time.IsZero() {
			msgs[i].Time = now
		}
	}
	return p.w.WriteMessages(ctx, msgs...)
}

// Close flushes pending writes and releases the connection.
func (p *Producer) Close() error { return p.w.Close() }
