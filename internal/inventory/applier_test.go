package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-ecommerce-saga/internal/obs"
	"github.com/ariefcatur/go-ecommerce-saga/internal/stock"
)

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDeduper) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.seen[id], nil
}

func (d *memDeduper) Mark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[id] = true
	return nil
}

type failingStore struct {
	*MemoryStore
	err error
}

func (s failingStore) ApplyDelta(context.Context, int64, int) (Product, error) {
	return Product{}, s.err
}

func mouse() Product {
	return Product{ID: 1, Name: "Mouse Gamer", Description: "Mouse RGB", Price: decimal.NewFromInt(150), Quantity: 30}
}

func TestApplyDecrementsStock(t *testing.T) {
	store := NewMemoryStore(mouse())
	a := NewStockApplier(store, zaptest.NewLogger(t))

	msg := stock.ToMessage(stock.ChangeEvent{MessageID: "m1", OrderID: 1, ProductID: 1, QuantityDelta: -5})
	require.NoError(t, a.Handle(context.Background(), msg))

	p, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 25, p.Quantity)
}

func TestApplyDropsUnknownProduct(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := obs.NewMetrics(reg)
	store := NewMemoryStore(mouse())
	a := NewStockApplier(store, zaptest.NewLogger(t), WithMetrics(m))

	err := a.Apply(context.Background(), stock.ChangeEvent{ProductID: 99, QuantityDelta: -1})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues("unknown_product")))

	p, _ := store.Get(context.Background(), 1)
	assert.Equal(t, 30, p.Quantity)
}

func TestHandleDropsMalformedMessage(t *testing.T) {
	store := NewMemoryStore(mouse())
	a := NewStockApplier(store, zaptest.NewLogger(t))

	err := a.Handle(context.Background(), kafkago.Message{Value: []byte("garbage")})
	assert.NoError(t, err)

	p, _ := store.Get(context.Background(), 1)
	assert.Equal(t, 30, p.Quantity)
}

func TestApplyReturnsStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	a := NewStockApplier(failingStore{MemoryStore: NewMemoryStore(), err: boom}, zaptest.NewLogger(t))

	err := a.Apply(context.Background(), stock.ChangeEvent{ProductID: 1, QuantityDelta: -1})
	assert.ErrorIs(t, err, boom)
}

// Without a deduper a redelivered message is applied again: the queue contract carries no
// idempotency guarantee.
func TestRedeliveryWithoutDedupAppliesTwice(t *testing.T) {
	store := NewMemoryStore(mouse())
	a := NewStockApplier(store, zaptest.NewLogger(t))

	msg := stock.ToMessage(stock.ChangeEvent{MessageID: "m1", ProductID: 1, QuantityDelta: -5})
	require.NoError(t, a.Handle(context.Background(), msg))
	require.NoError(t, a.Handle(context.Background(), msg))

	p, _ := store.Get(context.Background(), 1)
	assert.Equal(t, 20, p.Quantity)
}

func TestRedeliveryWithDedupAppliesOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := obs.NewMetrics(reg)
	store := NewMemoryStore(mouse())
	a := NewStockApplier(store, zaptest.NewLogger(t), WithDeduper(&memDeduper{}), WithMetrics(m))

	msg := stock.ToMessage(stock.ChangeEvent{MessageID: "m1", ProductID: 1, QuantityDelta: -5})
	require.NoError(t, a.Handle(context.Background(), msg))
	require.NoError(t, a.Handle(context.Background(), msg))

	p, _ := store.Get(context.Background(), 1)
	assert.Equal(t, 25, p.Quantity)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicatesSkipped))
}

func TestDedupLookupFailureIsRetried(t *testing.T) {
	store := NewMemoryStore(mouse())
	a := NewStockApplier(store, zaptest.NewLogger(t), WithDeduper(&memDeduper{err: errors.New("redis down")}))

	err := a.Apply(context.Background(), stock.ChangeEvent{MessageID: "m1", ProductID: 1, QuantityDelta: -5})
	assert.Error(t, err)

	p, _ := store.Get(context.Background(), 1)
	assert.Equal(t, 30, p.Quantity)
}

func TestApplyAllowsOversell(t *testing.T) {
	store := NewMemoryStore(Product{ID: 1, Name: "x", Quantity: 2})
	a := NewStockApplier(store, zaptest.NewLogger(t))

	require.NoError(t, a.Apply(context.Background(), stock.ChangeEvent{ProductID: 1, QuantityDelta: -3}))
	p, _ := store.Get(context.Background(), 1)
	assert.Equal(t, -1, p.Quantity)
}
