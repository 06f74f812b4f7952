package orders

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-ecommerce-saga/internal/stock"
)

type Order struct {
	ID       int64       `json:"id"`
	Customer string      `json:"customer"`
	PlacedAt time.Time   `json:"placedAt"`
	Items    []OrderLine `json:"items"`
}

// OrderLine references a product by id only; product state stays with the inventory.
type OrderLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	for i, it := range o.Items {
		if it.ProductID <= 0 {
			return fmt.Errorf("%w: line %d has no product", ErrInvalidOrder, i+1)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be > 0", ErrInvalidOrder, i+1)
		}
	}
	return nil
}

// StockChanges returns one decrement per line, in line order.
func (o Order) StockChanges(newID func() string) []stock.ChangeEvent {
	out := make([]stock.ChangeEvent, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, stock.ChangeEvent{
			MessageID:     newID(),
			OrderID:       o.ID,
			ProductID:     it.ProductID,
			QuantityDelta: -it.Quantity,
		})
	}
	return out
}

func (o Order) clone() Order {
	o.Items = append([]OrderLine(nil), o.Items...)
	return o
}

// OutboxEntry is a stock change written with its order and awaiting publication.
type OutboxEntry struct {
	Event     stock.ChangeEvent
	Status    OutboxStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
}
