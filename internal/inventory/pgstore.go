package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PGStore struct{ DB *pgxpool.Pool }

const productColumns = `id, name, description, price::text, quantity`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Quantity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %d price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

func (s *PGStore) List(ctx context.Context) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

func (s *PGStore) Create(ctx context.Context, p Product) (Product, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO products(name, description, price, quantity)
		VALUES ($1, $2, $3::numeric, $4)
		RETURNING id`, p.Name, p.Description, p.Price.String(), p.Quantity).Scan(&p.ID)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *PGStore) Update(ctx context.Context, p Product) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4::numeric, quantity=$5
		WHERE id=$1`, p.ID, p.Name, p.Description, p.Price.String(), p.Quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrProductNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id int64) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrProductNotFound
	}
	return nil
}

// ApplyDelta relies on the row lock taken by UPDATE, so concurrent deltas never lose updates.
func (s *PGStore) ApplyDelta(ctx context.Context, id int64, delta int) (Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `
		UPDATE products SET quantity = quantity + $2
		WHERE id=$1
		RETURNING `+productColumns, id, delta))
}
