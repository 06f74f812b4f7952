package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// DefaultCatalog is inserted into an empty inventory at startup.
func DefaultCatalog() []Product {
	return []Product{
		{Name: "Mouse Gamer", Description: "Mouse RGB", Price: decimal.NewFromInt(150), Quantity: 30},
		{Name: "Teclado Mecânico", Description: "Switch azul", Price: decimal.NewFromInt(250), Quantity: 15},
	}
}

// Seed inserts the given products only when the store holds none. It reports whether it did.
func Seed(ctx context.Context, s Store, products []Product) (bool, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	for _, p := range products {
		if _, err := s.Create(ctx, p); err != nil {
			return false, err
		}
	}
	return true, nil
}
