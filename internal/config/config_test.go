package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STOCK_QUEUE", "VERIFY_TIMEOUT", "OUTBOX_INTERVAL", "CONSUMER_DEDUP", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, ":8081", c.HTTPAddr)
	assert.Equal(t, "fila_vendas", c.StockQueue)
	assert.Equal(t, 3*time.Second, c.VerifyTimeout)
	assert.Equal(t, 5*time.Second, c.OutboxInterval)
	assert.False(t, c.ConsumerDedup)
	assert.Equal(t, []string{"kafka:9092"}, c.KafkaBrokers)
	assert.Empty(t, c.Warnings)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("OUTBOX_INTERVAL", "0")
	t.Setenv("CONSUMER_DEDUP", "true")
	t.Setenv("INVENTORY_URL", "http://inv:9000/")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	c := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, time.Duration(0), c.OutboxInterval)
	assert.True(t, c.ConsumerDedup)
	assert.Equal(t, "http://inv:9000", c.InventoryURL)
	assert.Equal(t, "memory", c.StorageDriver)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("VERIFY_TIMEOUT", "soon")
	t.Setenv("OUTBOX_BATCH", "-4")
	t.Setenv("CONSUMER_DEDUP", "maybe")
	c := Load()
	assert.Equal(t, 3*time.Second, c.VerifyTimeout)
	assert.Equal(t, 100, c.OutboxBatch)
	assert.False(t, c.ConsumerDedup)
	assert.Len(t, c.Warnings, 3)
}
