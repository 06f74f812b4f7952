// Package stock holds the stock-change message exchanged between the order and inventory
// services, and its wire format on the queue.
package stock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
)

// DefaultQueue is the queue carrying stock-change messages.
const DefaultQueue = "fila_vendas"

const (
	EventStockChanged = "StockChanged"

	HeaderEventType = "x-event-type"
	HeaderMessageID = "x-message-id"
	HeaderOrderID   = "x-order-id"
)

var ErrMalformedMessage = errors.New("malformed stock-change message")

// ChangeEvent asks the inventory to add QuantityDelta to a product's quantity.
// Sales always carry a negative delta.
type ChangeEvent struct {
	MessageID     string
	OrderID       int64
	ProductID     int64
	QuantityDelta int
}

// Body renders the event as "productId:<id>,quantity:<sold>"; the delta is implied negative.
func (e ChangeEvent) Body() []byte {
	return []byte(fmt.Sprintf("productId:%d,quantity:%d", e.ProductID, -e.QuantityDelta))
}

// ParseBody reads a "productId:<id>,quantity:<sold>" body and returns the product and the delta.
func ParseBody(b []byte) (productID int64, delta int, err error) {
	var (
		haveID, haveQty bool
		sold            int
	)
	for _, part := range strings.Split(string(b), ",") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q", ErrMalformedMessage, b)
		}
		switch strings.TrimSpace(k) {
		case "productId":
			productID, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			haveID = err == nil
		case "quantity":
			sold, err = strconv.Atoi(strings.TrimSpace(v))
			haveQty = err == nil
		}
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q: %v", ErrMalformedMessage, b, err)
		}
	}
	if !haveID || !haveQty || sold <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedMessage, b)
	}
	return productID, -sold, nil
}

// ToMessage maps the event onto a kafka message keyed by product, so every change for one
// product lands on the same partition.
func ToMessage(e ChangeEvent) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(e.ProductID, 10)),
		Value: e.Body(),
		Headers: []kafkago.Header{
			{Key: HeaderEventType, Value: []byte(EventStockChanged)},
			{Key: HeaderMessageID, Value: []byte(e.MessageID)},
			{Key: HeaderOrderID, Value: []byte(strconv.FormatInt(e.OrderID, 10))},
		},
	}
}

// FromMessage decodes a queue message. Missing headers are tolerated; only the body is required.
func FromMessage(m kafkago.Message) (ChangeEvent, error) {
	pid, delta, err := ParseBody(m.Value)
	if err != nil {
		return ChangeEvent{}, err
	}
	e := ChangeEvent{ProductID: pid, QuantityDelta: delta}
	for _, h := range m.Headers {
		switch h.Key {
		case HeaderMessageID:
			e.MessageID = string(h.Value)
		case HeaderOrderID:
			e.OrderID, _ = strconv.ParseInt(string(h.Value), 10, 64)
		}
	}
	return e, nil
}
