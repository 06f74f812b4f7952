package inventory

import "context"

// Store owns product records. ApplyDelta is the only path the stock-change consumer uses.
type Store interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id int64) error
	// ApplyDelta adds delta to the product's quantity as one atomic read-modify-write and
	// returns the updated product.
	ApplyDelta(ctx context.Context, id int64, delta int) (Product, error)
}
