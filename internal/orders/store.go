package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-ecommerce-saga/internal/stock"
)

type Store interface {
	// Create writes the order, its lines and one pending outbox entry per event in a single
	// transaction. On success o.ID is set and every event carries it.
	Create(ctx context.Context, o *Order, events []stock.ChangeEvent) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context) ([]Order, error)
}

type Outbox interface {
	// Pending returns unpublished entries created at or before the cutoff, oldest first.
	Pending(ctx context.Context, createdBefore time.Time, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, messageID string) error
	MarkFailed(ctx context.Context, messageID string, cause error) error
}

type Repository interface {
	Store
	Outbox
}
