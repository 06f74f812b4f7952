package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message is done with (applied or deliberately
// dropped); the offset is committed after that. Any error makes the consumer retry the
// same message.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type State int32

const (
	StateIdle State = iota
	StateReceiving
	StateApplying
)

func (s State) String() string {
	switch s {
	case StateReceiving:
		return "receiving"
	case StateApplying:
		return "applying"
	default:
		return "idle"
	}
}

type Option func(*Consumer)

// WithBackoff replaces the retry policy used while a handler keeps failing.
func WithBackoff(f func() backoff.BackOff) Option {
	return func(c *Consumer) { c.newBackoff = f }
}

// WithHandleTimeout bounds a single handler attempt.
func WithHandleTimeout(d time.Duration) Option {
	return func(c *Consumer) { c.handleTimeout = d }
}

// Consumer processes one message at a time in delivery order and commits only after the
// handler succeeded (at-least-once).
type Consumer struct {
	r             Reader
	logger        *zap.Logger
	newBackoff    func() backoff.BackOff
	handleTimeout time.Duration
	state         atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewConsumer(brokers []string, group, topic string, logger *zap.Logger, opts ...Option) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return NewConsumerWithReader(r, logger, opts...)
}

func NewConsumerWithReader(r Reader, logger *zap.Logger, opts ...Option) *Consumer {
	c := &Consumer{
		r:      r,
		logger: logger,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		handleTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Consumer) State() State { return State(c.state.Load()) }

// Start runs the receive loop in the background until Stop or ctx cancellation.
func (c *Consumer) Start(ctx context.Context, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.err = c.Run(ctx, h)
	}()
}

// Stop stops fetching, lets the in-flight message finish and waits for the loop to exit.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return c.err
}

// Run blocks until ctx is cancelled. The reader is closed on return.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	defer func() {
		c.state.Store(int32(StateIdle))
		if err := c.r.Close(); err != nil {
			c.logger.Warn("close reader", zap.Error(err))
		}
	}()

	for {
		c.state.Store(int32(StateReceiving))
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", zap.Error(ctx.Err()))
				return nil
			}
			c.logger.Error("fetch message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.state.Store(int32(StateApplying))
		c.process(ctx, h, m)
		c.state.Store(int32(StateIdle))
	}
}

// process runs the handler on a context detached from ctx so a stop request does not abort
// a write half way. Retries end when ctx is cancelled; the message then stays uncommitted and
// is redelivered later.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) {
	work := context.WithoutCancel(ctx)
	op := func() error {
		hctx, cancel := context.WithTimeout(work, c.handleTimeout)
		defer cancel()
		return h(hctx, m)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("handler failed, retrying",
			zap.Error(err), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackoff(), ctx), notify); err != nil {
		c.logger.Warn("message left uncommitted", zap.Error(err), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
		return
	}

	cctx, cancel := context.WithTimeout(work, 5*time.Second)
	defer cancel()
	if err := c.r.CommitMessages(cctx, m); err != nil {
		c.logger.Error("commit message", zap.Error(err), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
	}
}
