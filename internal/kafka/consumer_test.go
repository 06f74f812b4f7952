package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs)+1)}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func fastRetry() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

func TestConsumerCommitsInOrderAfterHandler(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 1}, kafka.Message{Offset: 2}, kafka.Message{Offset: 3})
	c := NewConsumerWithReader(r, zaptest.NewLogger(t), WithBackoff(fastRetry))

	var (
		mu   sync.Mutex
		seen []int64
	)
	c.Start(context.Background(), func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, m.Offset)
		return nil
	})

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	assert.Equal(t, []int64{1, 2, 3}, seen)
	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	assert.True(t, r.closed)
	assert.Equal(t, StateIdle, c.State())
}

func TestConsumerRetriesFailedMessageBeforeCommitting(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 7})
	c := NewConsumerWithReader(r, zaptest.NewLogger(t), WithBackoff(fastRetry))

	attempts := 0
	done := make(chan struct{})
	c.Start(context.Background(), func(_ context.Context, _ kafka.Message) error {
		attempts++
		if attempts < 3 {
			assert.Empty(t, r.commits())
			return errors.New("store down")
		}
		close(done)
		return nil
	})

	<-done
	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())
	assert.Equal(t, 3, attempts)
}

func TestConsumerStopDrainsInFlightMessage(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 1})
	c := NewConsumerWithReader(r, zaptest.NewLogger(t), WithBackoff(fastRetry))

	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr error
	c.Start(context.Background(), func(ctx context.Context, _ kafka.Message) error {
		close(started)
		<-release
		handlerErr = ctx.Err()
		return nil
	})

	<-started
	assert.Equal(t, StateApplying, c.State())

	stopped := make(chan error)
	go func() { stopped <- c.Stop() }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-stopped)
	assert.NoError(t, handlerErr, "handler context must survive stop")
	assert.Equal(t, []int64{1}, r.commits())
}

func TestConsumerStopAbandonsRetriesWithoutCommit(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 1})
	c := NewConsumerWithReader(r, zaptest.NewLogger(t), WithBackoff(fastRetry))

	failing := make(chan struct{}, 1)
	c.Start(context.Background(), func(context.Context, kafka.Message) error {
		select {
		case failing <- struct{}{}:
		default:
		}
		return errors.New("still down")
	})

	<-failing
	require.NoError(t, c.Stop())
	assert.Empty(t, r.commits(), "failed message must stay uncommitted for redelivery")
}

func TestStopWithoutStart(t *testing.T) {
	c := NewConsumerWithReader(newFakeReader(), zaptest.NewLogger(t))
	assert.NoError(t, c.Stop())
}
